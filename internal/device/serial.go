// Package device implements SerialDevice using go.bug.st/serial or tarm/serial,
// providing line reads and raw writes for physical serial communication ports.
package device

import (
	"bytes"
	"fmt"
	"io"
	"time"

	tarm "github.com/tarm/serial"
	serial "go.bug.st/serial"

	"CanSatGS/internal/model"
)

// SerialDevice implements Transport over a physical serial port.
type SerialDevice struct {
	cfg   model.SerialConfig
	port  io.ReadWriteCloser
	lines *lineReader
}

// NewSerialDevice creates an unopened serial transport for the given port settings.
func NewSerialDevice(cfg model.SerialConfig) *SerialDevice {
	return &SerialDevice{cfg: cfg}
}

// Open opens the port with the configured driver.
func (s *SerialDevice) Open() error {
	if s.port != nil {
		return nil
	}
	var (
		p   io.ReadWriteCloser
		err error
	)
	switch s.cfg.Driver {
	case model.DriverTarm:
		p, err = openTarm(s.cfg.Device, s.cfg.Baud, s.cfg.ReadTimeout())
	default:
		p, err = openBugst(s.cfg.Device, s.cfg.Baud, s.cfg.ReadTimeout())
	}
	if err != nil {
		return fmt.Errorf("failed to open serial %s: %w", s.cfg.Device, err)
	}
	s.port = p
	s.lines = newLineReader(p)
	return nil
}

func openBugst(dev string, baud int, timeout time.Duration) (io.ReadWriteCloser, error) {
	p, err := serial.Open(dev, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, err
	}
	if err := p.SetReadTimeout(timeout); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	return p, nil
}

func openTarm(dev string, baud int, timeout time.Duration) (io.ReadWriteCloser, error) {
	p, err := tarm.OpenPort(&tarm.Config{
		Name:        dev,
		Baud:        baud,
		Parity:      tarm.ParityNone,
		StopBits:    tarm.Stop1,
		ReadTimeout: timeout,
	})
	if err != nil {
		return nil, err
	}
	return tarmPort{p}, nil
}

// tarmPort reports a read timeout as an empty read instead of io.EOF,
// matching go.bug.st/serial.
type tarmPort struct {
	*tarm.Port
}

func (p tarmPort) Read(b []byte) (int, error) {
	n, err := p.Port.Read(b)
	if n == 0 && err == io.EOF {
		return 0, nil
	}
	return n, err
}

// ReadLine returns the next complete line or ErrNoData when the read window
// elapsed without one.
func (s *SerialDevice) ReadLine() (string, error) {
	if s.port == nil {
		return "", ErrNotOpen
	}
	return s.lines.next()
}

// Write sends raw bytes to the port.
func (s *SerialDevice) Write(p []byte) error {
	if s.port == nil {
		return ErrNotOpen
	}
	_, err := s.port.Write(p)
	return err
}

// Close closes the underlying serial connection.
func (s *SerialDevice) Close() error {
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	s.lines = nil
	return err
}

// Noun implements Transport.
func (s *SerialDevice) Noun() string { return "port" }

// lineReader splits a timeout-driven byte stream into lines. A partial
// line is kept across calls until its terminator arrives.
type lineReader struct {
	r       io.Reader
	buf     []byte
	pending []byte
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{r: r, buf: make([]byte, 512)}
}

func (l *lineReader) next() (string, error) {
	for {
		if i := bytes.IndexByte(l.pending, '\n'); i >= 0 {
			line := string(l.pending[:i+1])
			l.pending = l.pending[i+1:]
			return line, nil
		}
		n, err := l.r.Read(l.buf)
		if n > 0 {
			l.pending = append(l.pending, l.buf[:n]...)
		}
		if err != nil {
			return "", err
		}
		if n == 0 {
			return "", ErrNoData
		}
	}
}
