package resources

import "io"

// File is the payload handed to a type's load function.
type File interface {
	io.Reader
	ID() ResourceID
	Size() int64
	// Bytes returns the whole payload without copying when the file is
	// backed by mapped bundle memory.
	Bytes() ([]byte, bool)
}

// Stream is an incrementally readable payload opened through the loader.
type Stream interface {
	io.ReadSeekCloser
	ID() ResourceID
	Size() int64
}
