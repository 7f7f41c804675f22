package loaders

import (
	"io"

	"github.com/spaghettifunk/anima-resources/engine/resources"
)

const TextVersion uint32 = 1

type TextLoader struct{}

func (tl *TextLoader) Load(f resources.File, a resources.Allocator) (any, error) {
	if b, ok := f.Bytes(); ok {
		return string(b), nil
	}
	buf, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return string(buf), nil
}

func (tl *TextLoader) Unload(a resources.Allocator, data any) {}

func (tl *TextLoader) Online(name resources.StringID, m resources.Manager) {}

func (tl *TextLoader) Offline(name resources.StringID, m resources.Manager) {}
