package core

import (
	"errors"
)

var (
	ErrTypeNotRegistered = errors.New("resource type not registered")
	ErrNotAvailable      = errors.New("resource not available")
	ErrNotLoaded         = errors.New("resource not loaded")
	ErrPackageNotLoaded  = errors.New("owning package not loaded")
	ErrLoaderShutdown    = errors.New("resource loader is shut down")
	ErrUnknownStream     = errors.New("unknown stream")
	ErrNotMapped         = errors.New("payload is not backed by mapped memory")
	ErrUnknown           = errors.New("unknown")
)
