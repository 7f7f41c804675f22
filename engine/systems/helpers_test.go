package systems

import (
	"bytes"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/spaghettifunk/anima-resources/engine/containers"
	"github.com/spaghettifunk/anima-resources/engine/core"
	"github.com/spaghettifunk/anima-resources/engine/resources"
)

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

type testFile struct {
	*bytes.Reader
	id resources.ResourceID
}

func (f *testFile) ID() resources.ResourceID { return f.id }
func (f *testFile) Bytes() ([]byte, bool)    { return nil, false }
func (f *testFile) Close() error             { return nil }

// fakeLoader completes requests only when the test says so, in whatever
// order the test picks.
type fakeLoader struct {
	inflight  []ResourceRequest
	completed *containers.RingQueue[ResourceRequest]
	signal    chan struct{}
	payloads  map[resources.ResourceID][]byte
	// capacity limits in-flight requests; 0 means unlimited.
	capacity int
	// immediate completes every request inside AddRequest.
	immediate bool
	added     []resources.ResourceID
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{
		completed: containers.NewRingQueue[ResourceRequest](4, true),
		signal:    make(chan struct{}, 1),
		payloads:  make(map[resources.ResourceID][]byte),
	}
}

func (fl *fakeLoader) AddRequest(rr ResourceRequest) bool {
	if fl.capacity > 0 && len(fl.inflight) >= fl.capacity {
		return false
	}
	fl.added = append(fl.added, rr.ResourceID())
	fl.inflight = append(fl.inflight, rr)
	if fl.immediate {
		fl.finish(rr.ResourceID())
	}
	return true
}

func (fl *fakeLoader) PopCompleted() (ResourceRequest, bool) {
	rr, err := fl.completed.Dequeue()
	return rr, err == nil
}

func (fl *fakeLoader) PushCompleted(rr ResourceRequest) {
	_ = fl.completed.Enqueue(rr)
}

func (fl *fakeLoader) Completed() <-chan struct{} { return fl.signal }

func (fl *fakeLoader) OpenStream(typ, name resources.StringID) (resources.Stream, error) {
	return nil, os.ErrNotExist
}

func (fl *fakeLoader) CloseStream(s resources.Stream) error { return core.ErrUnknownStream }

func (fl *fakeLoader) Bundled() bool { return false }

func (fl *fakeLoader) take(id resources.ResourceID) ResourceRequest {
	for i, rr := range fl.inflight {
		if rr.ResourceID() == id {
			fl.inflight = append(fl.inflight[:i], fl.inflight[i+1:]...)
			return rr
		}
	}
	panic("no request in flight for " + id.String())
}

func (fl *fakeLoader) publish(rr ResourceRequest) {
	fl.PushCompleted(rr)
	select {
	case fl.signal <- struct{}{}:
	default:
	}
}

// finish runs the load function of the in-flight request for id.
func (fl *fakeLoader) finish(id resources.ResourceID) {
	rr := fl.take(id)
	payload, ok := fl.payloads[id]
	if !ok {
		payload = []byte(id.String())
	}
	data, err := rr.LoadFunction(&testFile{Reader: bytes.NewReader(payload), id: id}, rr.Allocator)
	rr.Data, rr.Err = data, err
	fl.publish(rr)
}

// fail publishes the in-flight request for id as failed.
func (fl *fakeLoader) fail(id resources.ResourceID) {
	rr := fl.take(id)
	rr.Err = errors.New("disk on fire")
	fl.publish(rr)
}

func (fl *fakeLoader) requests(id resources.ResourceID) int {
	n := 0
	for _, a := range fl.added {
		if a == id {
			n++
		}
	}
	return n
}

var typeWidget = resources.HashString("widget")

// eventLog records callback invocations in order.
type eventLog struct {
	events []string
}

func (l *eventLog) add(kind string, name resources.StringID) {
	l.events = append(l.events, kind+":"+names[name])
}

var names = map[resources.StringID]string{}

func sid(name string) resources.StringID {
	id := resources.HashString(name)
	names[id] = name
	return id
}

func widgetFuncs(l *eventLog) resources.TypeFuncs {
	return resources.TypeFuncs{
		Load: func(f resources.File, a resources.Allocator) (any, error) {
			return resources.LoadFile(f, a)
		},
		Unload: func(a resources.Allocator, data any) {
			resources.UnloadFile(a, data)
		},
		Online:  func(name resources.StringID, m resources.Manager) { l.add("online", name) },
		Offline: func(name resources.StringID, m resources.Manager) { l.add("offline", name) },
	}
}
