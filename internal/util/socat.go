// Package util provides helpers for virtual serial management using socat.
package util

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// socatBinary is the executable started for each pair.
var socatBinary = "socat"

// VirtualPair is one running socat process joining two pseudo-terminals.
// Left and Right are the symlinks callers open; PTYs are the devices
// socat reported behind them.
type VirtualPair struct {
	Left, Right string

	mu     sync.Mutex
	ptys   []string
	cmd    *exec.Cmd
	exited chan struct{}
	err    error
}

// PTYs returns the pseudo-terminal devices socat allocated.
func (p *VirtualPair) PTYs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.ptys...)
}

// Done is closed when the socat process exits.
func (p *VirtualPair) Done() <-chan struct{} { return p.exited }

// Err is the socat exit status once Done is closed.
func (p *VirtualPair) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// SocatManager owns the socat processes behind virtual serial pairs so the
// simulator and the ground station can talk without hardware.
type SocatManager struct {
	mu     sync.Mutex
	pairs  []*VirtualPair
	closed bool
}

// NewSocatManager initializes an empty manager.
func NewSocatManager() *SocatManager {
	return &SocatManager{}
}

// parsePTY extracts the device from a socat "-d -d" line such as
// "2026/10/16 12:00:00 socat[4242] N PTY is /dev/pts/7".
func parsePTY(line string) (string, bool) {
	const marker = "PTY is "
	i := strings.Index(line, marker)
	if i < 0 {
		return "", false
	}
	dev := strings.TrimSpace(line[i+len(marker):])
	return dev, dev != ""
}

// CreatePair starts socat linking two PTYs at left and right. It returns
// once socat has reported both devices and the links exist, or fails if
// socat exits first or timeout elapses.
func (m *SocatManager) CreatePair(left, right string, timeout time.Duration) (*VirtualPair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, errors.New("socat manager already cleaned up")
	}

	cmd := exec.Command(
		socatBinary, "-d", "-d",
		fmt.Sprintf("pty,raw,echo=0,link=%s", left),
		fmt.Sprintf("pty,raw,echo=0,link=%s", right),
	)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start socat: %w", err)
	}
	pair := &VirtualPair{Left: left, Right: right, cmd: cmd, exited: make(chan struct{})}
	m.pairs = append(m.pairs, pair)
	Info("[virt-serial] started socat (pid=%d): %s <-> %s", cmd.Process.Pid, left, right)

	ready := make(chan struct{})
	drained := make(chan struct{})
	go func() {
		pair.watchOutput(stderr, ready)
		close(drained)
	}()
	go func() {
		// Wait closes the pipe, so it must follow the last read.
		<-drained
		err := cmd.Wait()
		pair.mu.Lock()
		pair.err = err
		pair.mu.Unlock()
		close(pair.exited)
	}()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	select {
	case <-ready:
	case <-pair.exited:
		return nil, fmt.Errorf("socat exited before creating %s and %s: %v", left, right, pair.Err())
	case <-deadline.C:
		return nil, fmt.Errorf("socat did not report its PTYs within %s", timeout)
	}

	for _, path := range []string{left, right} {
		for {
			if _, err := os.Lstat(path); err == nil {
				break
			}
			select {
			case <-pair.exited:
				return nil, fmt.Errorf("socat exited before linking %s: %v", path, pair.Err())
			case <-deadline.C:
				return nil, fmt.Errorf("socat link %s not ready after %s", path, timeout)
			case <-time.After(20 * time.Millisecond):
			}
		}
	}
	ptys := pair.PTYs()
	Info("[virt-serial] %s -> %s, %s -> %s", left, ptys[0], right, ptys[1])
	return pair, nil
}

// watchOutput logs socat diagnostics and closes ready after two PTY lines.
func (p *VirtualPair) watchOutput(r io.Reader, ready chan<- struct{}) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		Debug("[virt-serial] %s", line)
		dev, ok := parsePTY(line)
		if !ok {
			continue
		}
		p.mu.Lock()
		p.ptys = append(p.ptys, dev)
		n := len(p.ptys)
		p.mu.Unlock()
		if n == 2 {
			close(ready)
		}
	}
}

// Cleanup stops every socat process and removes the links it created.
func (m *SocatManager) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true

	for _, p := range m.pairs {
		select {
		case <-p.exited:
			Warn("[virt-serial] socat for %s exited early: %v", p.Left, p.Err())
		default:
			_ = p.cmd.Process.Kill()
			<-p.exited
		}
		for _, path := range []string{p.Left, p.Right} {
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				Debug("[virt-serial] remove %s: %v", path, err)
			}
		}
	}
	Info("[virt-serial] cleanup complete (%d pairs)", len(m.pairs))
}
