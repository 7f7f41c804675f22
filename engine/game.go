package engine

import (
	"time"

	"github.com/spaghettifunk/anima-resources/engine/systems"
)

type Game struct {
	Config *EngineConfig
	// Set by the engine before FnInitialize runs.
	SystemManager *systems.SystemManager
	State         interface{}
	FnInitialize  Initialize
	FnUpdate      Update
	FnShutdown    Shutdown
}

type Initialize func() error
type Update func(deltaTime time.Duration) error
type Shutdown func() error
