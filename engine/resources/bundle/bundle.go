// Package bundle reads and writes pre-packed resource bundles.
//
// A bundle is a single file holding the payloads of many resources. The
// layout is little endian:
//
//	header  magic u32 | format u32 | count u32
//	index   count x (type u64 | name u64 | version u32 | offset u64 | size u64)
//	payload concatenated entry bytes
//
// Opened bundles are memory mapped where the platform allows it, so
// entry payloads can be handed out without copying.
package bundle

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/spaghettifunk/anima-resources/engine/resources"
)

// FormatVersion is the bundle container version.
const FormatVersion uint32 = 1

const (
	headerSize     = 12
	indexEntrySize = 36
)

var (
	ErrBadMagic      = errors.New("bundle: bad magic number")
	ErrBadFormat     = errors.New("bundle: unsupported format version")
	ErrTruncated     = errors.New("bundle: truncated file")
	ErrDuplicateItem = errors.New("bundle: duplicate resource")
)

// Entry describes one resource inside a bundle.
type Entry struct {
	ID      resources.ResourceID
	Version uint32
	Offset  uint64
	Size    uint64
}

// Bundle is an opened bundle file.
type Bundle struct {
	path    string
	data    []byte
	entries map[resources.ResourceID]Entry
	release func() error
}

// Open maps the bundle at path and parses its index.
func Open(path string) (*Bundle, error) {
	data, release, err := mapFile(path)
	if err != nil {
		return nil, fmt.Errorf("bundle: open %s: %w", path, err)
	}
	entries, err := parseIndex(data)
	if err != nil {
		_ = release()
		return nil, fmt.Errorf("bundle: %s: %w", path, err)
	}
	return &Bundle{
		path:    path,
		data:    data,
		entries: entries,
		release: release,
	}, nil
}

// FromBytes parses an in-memory bundle. The bundle aliases data.
func FromBytes(data []byte) (*Bundle, error) {
	entries, err := parseIndex(data)
	if err != nil {
		return nil, err
	}
	return &Bundle{
		data:    data,
		entries: entries,
		release: func() error { return nil },
	}, nil
}

func parseIndex(data []byte) (map[resources.ResourceID]Entry, error) {
	if len(data) < headerSize {
		return nil, ErrTruncated
	}
	le := binary.LittleEndian
	if le.Uint32(data[0:4]) != resources.ResourceMagic {
		return nil, ErrBadMagic
	}
	if v := le.Uint32(data[4:8]); v != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrBadFormat, v)
	}
	count := int(le.Uint32(data[8:12]))
	if len(data) < headerSize+count*indexEntrySize {
		return nil, ErrTruncated
	}
	entries := make(map[resources.ResourceID]Entry, count)
	for i := 0; i < count; i++ {
		b := data[headerSize+i*indexEntrySize:]
		e := Entry{
			ID: resources.ResourceID{
				Type: resources.StringID(le.Uint64(b[0:8])),
				Name: resources.StringID(le.Uint64(b[8:16])),
			},
			Version: le.Uint32(b[16:20]),
			Offset:  le.Uint64(b[20:28]),
			Size:    le.Uint64(b[28:36]),
		}
		if e.Offset+e.Size > uint64(len(data)) || e.Offset+e.Size < e.Offset {
			return nil, fmt.Errorf("%w: entry %s", ErrTruncated, e.ID)
		}
		entries[e.ID] = e
	}
	return entries, nil
}

// Lookup returns the entry for id.
func (b *Bundle) Lookup(id resources.ResourceID) (Entry, bool) {
	e, ok := b.entries[id]
	return e, ok
}

// Bytes returns the payload of e. The slice aliases the bundle memory and
// is only valid until Close and must not be written to.
func (b *Bundle) Bytes(e Entry) []byte {
	end := e.Offset + e.Size
	return b.data[e.Offset:end:end]
}

// Len returns the number of entries.
func (b *Bundle) Len() int {
	return len(b.entries)
}

// Entries returns all entries ordered by offset.
func (b *Bundle) Entries() []Entry {
	out := make([]Entry, 0, len(b.entries))
	for _, e := range b.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Offset < out[j].Offset })
	return out
}

// Close unmaps the bundle. Payloads handed out before are invalid after.
func (b *Bundle) Close() error {
	if b.release == nil {
		return nil
	}
	err := b.release()
	b.release = nil
	b.data = nil
	return err
}

// Writer accumulates entries and writes a bundle in one go.
type Writer struct {
	items []item
	seen  map[resources.ResourceID]struct{}
}

type item struct {
	id      resources.ResourceID
	version uint32
	data    []byte
}

func NewWriter() *Writer {
	return &Writer{seen: make(map[resources.ResourceID]struct{})}
}

// Add queues a payload.
func (w *Writer) Add(id resources.ResourceID, version uint32, data []byte) error {
	if _, ok := w.seen[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateItem, id)
	}
	w.seen[id] = struct{}{}
	w.items = append(w.items, item{id: id, version: version, data: data})
	return nil
}

// WriteTo writes the bundle to out.
func (w *Writer) WriteTo(out io.Writer) (int64, error) {
	le := binary.LittleEndian
	var buf bytes.Buffer
	hdr := make([]byte, headerSize)
	le.PutUint32(hdr[0:4], resources.ResourceMagic)
	le.PutUint32(hdr[4:8], FormatVersion)
	le.PutUint32(hdr[8:12], uint32(len(w.items)))
	buf.Write(hdr)

	offset := uint64(headerSize + len(w.items)*indexEntrySize)
	idx := make([]byte, indexEntrySize)
	for _, it := range w.items {
		le.PutUint64(idx[0:8], uint64(it.id.Type))
		le.PutUint64(idx[8:16], uint64(it.id.Name))
		le.PutUint32(idx[16:20], it.version)
		le.PutUint64(idx[20:28], offset)
		le.PutUint64(idx[28:36], uint64(len(it.data)))
		buf.Write(idx)
		offset += uint64(len(it.data))
	}
	for _, it := range w.items {
		buf.Write(it.data)
	}
	return buf.WriteTo(out)
}

// PackDir bundles every resource file of a data directory into path.
// File names must be the textual form of a ResourceID; other files are
// skipped. version returns the format version recorded for a type.
func PackDir(dir, path string, version func(resources.StringID) uint32) (int, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	w := NewWriter()
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		id, err := resources.ParseResourceID(f.Name())
		if err != nil {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, f.Name()))
		if err != nil {
			return 0, err
		}
		if err := w.Add(id, version(id.Type), data); err != nil {
			return 0, err
		}
	}
	out, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	if _, err := w.WriteTo(out); err != nil {
		out.Close()
		return 0, err
	}
	return len(w.items), out.Close()
}
