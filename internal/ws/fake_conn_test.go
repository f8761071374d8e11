package ws

import (
	"errors"
	"fmt"
	"sync"
)

var errFakeDelivery = errors.New("fake delivery failure")

// fakeConn records frames in memory and can be told to fail.
type fakeConn struct {
	id       string
	fail     bool
	mu       sync.Mutex
	received []string
	closed   int
}

func newFakeConn(id string, fail bool) *fakeConn {
	return &fakeConn{id: id, fail: fail}
}

func newFakeConns(n int, failing func(i int) bool) []*fakeConn {
	conns := make([]*fakeConn, n)
	for i := range conns {
		conns[i] = newFakeConn(fmt.Sprintf("conn-%d", i), failing(i))
	}
	return conns
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errFakeDelivery
	}
	f.received = append(f.received, string(data))
	return nil
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
}

func (f *fakeConn) Received() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.received...)
}

func (f *fakeConn) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed > 0
}
