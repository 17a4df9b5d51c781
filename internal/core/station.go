// Package core contains the runtime orchestration of the ground station.
// Station builds the telemetry link, the classifier and the log consumer
// from configuration and pumps link events through the classifier.
package core

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"CanSatGS/internal/commslog"
	"CanSatGS/internal/device"
	"CanSatGS/internal/link"
	"CanSatGS/internal/model"
	"CanSatGS/internal/parser"
	"CanSatGS/internal/util"
)

// closeTimeout bounds how long Stop waits for the link worker.
const closeTimeout = 3 * time.Second

// LinkSink observes link lifecycle events (opened, status, received, closed).
type LinkSink interface {
	OnLinkEvent(ev link.Event)
}

// Snapshot is the station state shown to operators.
type Snapshot struct {
	State      link.State    `json:"state"`
	Transport  string        `json:"transport"`
	LastStatus string        `json:"last_status,omitempty"`
	Pending    int           `json:"pending"`
	Last       *model.Record `json:"last,omitempty"`
	LastAt     time.Time     `json:"last_at,omitempty"`
	Logging    bool          `json:"logging"`
}

// Station manages the lifecycle of the link, classifier and consumers.
type Station struct {
	cfg        *model.Config
	Link       *link.Link
	Classifier *parser.Classifier
	Bus        *parser.Bus
	Log        *commslog.Writer

	mu         sync.RWMutex
	linkSinks  []LinkSink
	last       *model.Record
	lastAt     time.Time
	lastStatus string

	started   bool
	startLock sync.Mutex
	quit      chan struct{}
	wg        sync.WaitGroup
}

// NewStation constructs a Station from cfg. The link starts closed.
func NewStation(cfg *model.Config) (*Station, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Station{
		cfg:        cfg,
		Link:       link.New(NewTransportFactory(cfg.Link), PolicyFor(cfg.Link)),
		Classifier: parser.NewClassifier(cfg.SchemaDef()),
		Bus:        &parser.Bus{},
		Log: commslog.New(commslog.Options{
			RawFile:    cfg.Log.RawFile,
			CSVFile:    cfg.Log.CSVFile,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			Enabled:    cfg.Log.Enabled,
		}),
	}
	s.Bus.Subscribe(s.Log)
	return s, nil
}

// NewTransportFactory returns a constructor of fresh transports for cfg.
func NewTransportFactory(cfg model.LinkConfig) func() device.Transport {
	if cfg.Transport == model.TransportFile {
		path := cfg.File.Path
		return func() device.Transport { return device.NewFileReplay(path) }
	}
	serialCfg := cfg.Serial
	return func() device.Transport { return device.NewSerialDevice(serialCfg) }
}

// PolicyFor derives the worker policy from the link config.
func PolicyFor(cfg model.LinkConfig) link.Policy {
	return link.Policy{
		MaxRetries:   cfg.MaxRetries(),
		RetryDelay:   cfg.RetryDelay(),
		LineInterval: cfg.LineInterval(),
		EventBuffer:  cfg.EventBuffer,
	}
}

// Subscribe registers a consumer by capability: classifier sinks go on the
// bus, LinkSink implementations receive raw link events.
func (s *Station) Subscribe(sub any) error {
	ok := s.Bus.Subscribe(sub)
	if ls, isLink := sub.(LinkSink); isLink {
		s.mu.Lock()
		s.linkSinks = append(s.linkSinks, ls)
		s.mu.Unlock()
		ok = true
	}
	if !ok {
		return fmt.Errorf("subscriber %T implements no sink interface", sub)
	}
	return nil
}

// Start launches the event pump. It does not open the link.
func (s *Station) Start() {
	s.startLock.Lock()
	defer s.startLock.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.quit = make(chan struct{})
	s.wg.Add(1)
	go s.pump(s.quit)
}

// Stop closes the link, waits until its worker has published the closed
// event and stops the pump once that event is handled. A close already in
// flight is waited for the same way.
func (s *Station) Stop() {
	s.startLock.Lock()
	defer s.startLock.Unlock()
	if !s.started {
		return
	}
	if err := s.Link.Close(); err != nil && !errors.Is(err, link.ErrNotOpen) {
		util.Warn("[station] close link: %v", err)
	}
	select {
	case <-s.Link.Idle():
	case <-time.After(closeTimeout):
		util.Warn("[station] link did not close within %s", closeTimeout)
	}
	close(s.quit)
	s.wg.Wait()
	if err := s.Log.Close(); err != nil {
		util.Error("[station] close comms log: %v", err)
	}
	s.started = false
}

// Open opens the link.
func (s *Station) Open() error {
	util.Info("[station] opening %s link", s.cfg.Link.Transport)
	return s.Link.Open()
}

// Close requests the link to close.
func (s *Station) Close() error {
	util.Info("[station] closing %s link", s.cfg.Link.Transport)
	return s.Link.Close()
}

// SetLogging toggles the communications log.
func (s *Station) SetLogging(on bool) {
	s.Log.SetEnabled(on)
	util.Info("[station] comms logging enabled=%v", on)
}

// SendCommand transmits a command. A configured shortcut label is replaced
// by its command text. A trailing newline is added when missing.
func (s *Station) SendCommand(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("empty command")
	}
	if cmd, ok := s.cfg.CommandFor(text); ok {
		text = cmd
	}
	return s.Link.Transmit(text + "\n")
}

// Snapshot returns the current link state and the newest telemetry record.
func (s *Station) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		State:      s.Link.State(),
		Transport:  s.cfg.Link.Transport,
		LastStatus: s.lastStatus,
		Pending:    s.Link.Pending(),
		Last:       s.last,
		LastAt:     s.lastAt,
		Logging:    s.Log.Enabled(),
	}
}

func (s *Station) pump(quit <-chan struct{}) {
	defer s.wg.Done()
	for {
		select {
		case <-quit:
			// deliver what the worker published before it went idle
			for {
				select {
				case ev := <-s.Link.Events():
					s.handle(ev)
				default:
					return
				}
			}
		case ev := <-s.Link.Events():
			s.handle(ev)
		}
	}
}

func (s *Station) handle(ev link.Event) {
	s.mu.RLock()
	sinks := s.linkSinks
	s.mu.RUnlock()
	for _, sink := range sinks {
		sink.OnLinkEvent(ev)
	}

	switch ev.Kind {
	case link.EventOpened:
		util.Info("[station] link opened")
	case link.EventClosed:
		util.Info("[station] link closed")
	case link.EventStatus, link.EventReceived:
		if ev.Kind == link.EventStatus {
			s.mu.Lock()
			s.lastStatus = ev.Line
			s.mu.Unlock()
		}
		events := s.Classifier.Classify(ev.Line)
		for _, cev := range events {
			if cev.Kind == model.EventTelemetry {
				rec := cev.Record
				s.mu.Lock()
				s.last, s.lastAt = &rec, cev.Time
				s.mu.Unlock()
			}
		}
		s.Bus.Publish(events...)
	}
}
