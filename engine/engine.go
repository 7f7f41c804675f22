package engine

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"

	"github.com/spaghettifunk/anima-resources/engine/assets"
	"github.com/spaghettifunk/anima-resources/engine/core"
	"github.com/spaghettifunk/anima-resources/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

var ErrNoGame = errors.New("engine needs a game with an update function")

type Engine struct {
	currentStage  Stage
	gameInstance  *Game
	config        EngineConfig
	isRunning     atomic.Bool
	assetWatcher  *assets.AssetWatcher
	systemManager *systems.SystemManager
	clock         *core.Clock
	lastTime      time.Duration
	frameCount    uint64
}

func New(g *Game) (*Engine, error) {
	if g == nil || g.FnUpdate == nil {
		return nil, ErrNoGame
	}
	config := DefaultConfig()
	if g.Config != nil {
		config = *g.Config
	}
	config.normalize()
	core.SetLogLevel(core.ParseLogLevel(config.LogLevel))

	sm, err := systems.NewSystemManager(config.systemManagerConfig())
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	g.SystemManager = sm

	return &Engine{
		currentStage:  EngineStageUninitialized,
		gameInstance:  g,
		config:        config,
		clock:         core.NewClock(),
		systemManager: sm,
	}, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing

	if e.config.HotReload {
		aw, err := assets.NewAssetWatcher(e.config.DataDir)
		if err != nil {
			return fmt.Errorf("hot reload: %w", err)
		}
		e.assetWatcher = aw
	}

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(); err != nil {
			return err
		}
	}
	e.currentStage = EngineStageInitialized
	core.LogInfo("%s initialized", e.config.Name)
	return nil
}

// Run drives the frame loop until Stop is called or the game fails.
func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	var targetFrame time.Duration
	if e.config.TargetFPS > 0 {
		targetFrame = time.Second / time.Duration(e.config.TargetFPS)
	}

	for e.isRunning.Load() {
		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime
		frameStart := time.Now()

		if e.assetWatcher != nil {
			e.assetWatcher.Process(e.systemManager.ResourceManager)
		}

		if err := e.gameInstance.FnUpdate(delta); err != nil {
			core.LogError("Game update failed, shutting down: %s", err)
			e.isRunning.Store(false)
			return err
		}

		e.systemManager.Update()
		e.frameCount++

		// If there is time left in the frame, give it back to the OS.
		if remaining := targetFrame - time.Since(frameStart); remaining > 0 {
			time.Sleep(remaining)
		}
		e.lastTime = currentTime
	}
	return nil
}

// Stop ends the frame loop after the current frame. Safe to call from
// any goroutine.
func (e *Engine) Stop() {
	e.isRunning.Store(false)
}

func (e *Engine) Frames() uint64 {
	return e.frameCount
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	var err error
	if e.gameInstance.FnShutdown != nil {
		err = e.gameInstance.FnShutdown()
	}
	if e.assetWatcher != nil {
		err = multierr.Append(err, e.assetWatcher.Close())
	}
	err = multierr.Append(err, e.systemManager.Shutdown())
	core.LogInfo("%s shut down after %d frames", e.config.Name, e.frameCount)
	return err
}
