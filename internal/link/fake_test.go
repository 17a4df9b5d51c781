package link

import (
	"errors"
	"sync"

	"CanSatGS/internal/device"
)

var errUnplugged = errors.New("device unplugged")

// fakeHub hands out scripted transports and records what the worker did.
type fakeHub struct {
	mu       sync.Mutex
	noun     string
	openErrs []error  // consumed per Open; nil entries succeed
	lines    []string // inbound lines served by the next successful transport
	failRead error    // returned once lines are exhausted; nil means ErrNoData forever
	writeErr error
	written  []string
	opens    int
	closes   int
}

func (h *fakeHub) factory() device.Transport { return &fakeTransport{hub: h} }

func (h *fakeHub) Written() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.written...)
}

func (h *fakeHub) Counts() (opens, closes int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.opens, h.closes
}

type fakeTransport struct {
	hub   *fakeHub
	lines []string
	open  bool
}

func (t *fakeTransport) Open() error {
	h := t.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	h.opens++
	if len(h.openErrs) > 0 {
		err := h.openErrs[0]
		h.openErrs = h.openErrs[1:]
		if err != nil {
			return err
		}
	}
	t.lines = h.lines
	h.lines = nil
	t.open = true
	return nil
}

func (t *fakeTransport) ReadLine() (string, error) {
	if len(t.lines) > 0 {
		line := t.lines[0]
		t.lines = t.lines[1:]
		return line, nil
	}
	t.hub.mu.Lock()
	err := t.hub.failRead
	t.hub.mu.Unlock()
	if err != nil {
		return "", err
	}
	return "", device.ErrNoData
}

func (t *fakeTransport) Write(p []byte) error {
	h := t.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.writeErr != nil {
		return h.writeErr
	}
	h.written = append(h.written, string(p))
	return nil
}

func (t *fakeTransport) Close() error {
	t.hub.mu.Lock()
	t.hub.closes++
	t.hub.mu.Unlock()
	t.open = false
	return nil
}

func (t *fakeTransport) Noun() string {
	if t.hub.noun == "" {
		return "port"
	}
	return t.hub.noun
}
