// Package app implements the relay: an HTTP API and websocket stream over
// the ground station, backed by a BoltDB telemetry archive.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"CanSatGS/internal/core"
	"CanSatGS/internal/link"
	"CanSatGS/internal/model"
	"CanSatGS/internal/util"
)

// Controller is the part of the station the relay drives.
type Controller interface {
	Open() error
	Close() error
	SendCommand(text string) error
	Snapshot() core.Snapshot
}

// App serves the relay endpoints.
type App struct {
	Archive *Archive
	Mux     *http.ServeMux
	Server  *http.Server

	ctrl Controller
	hub  *hub
}

// linkMessage is the websocket frame for link lifecycle events.
type linkMessage struct {
	Kind  string     `json:"kind"`
	Event string     `json:"event"`
	State link.State `json:"state"`
	Text  string     `json:"text,omitempty"`
	Time  time.Time  `json:"time"`
}

// NewApp opens the archive at dbPath and registers routes.
func NewApp(ctrl Controller, dbPath string) (*App, error) {
	if ctrl == nil {
		return nil, errors.New("[app] nil controller")
	}
	archive, err := OpenArchive(dbPath)
	if err != nil {
		return nil, err
	}
	a := &App{
		Archive: archive,
		Mux:     http.NewServeMux(),
		ctrl:    ctrl,
		hub:     newHub(),
	}
	a.registerRoutes()
	return a, nil
}

// OnEvent streams every classified event and archives telemetry.
func (a *App) OnEvent(ev model.Event) {
	if ev.Kind == model.EventTelemetry {
		if err := a.Archive.Put(ev.Time, ev.Record); err != nil {
			util.Error("[app] archive telemetry: %v", err)
		}
	}
	msg, err := json.Marshal(ev)
	if err != nil {
		util.Error("[app] encode event: %v", err)
		return
	}
	a.hub.broadcast(msg)
}

// OnLinkEvent streams link state changes.
func (a *App) OnLinkEvent(ev link.Event) {
	if ev.Kind == link.EventReceived {
		return
	}
	msg, err := json.Marshal(linkMessage{
		Kind:  "link",
		Event: ev.Kind.String(),
		State: ev.State,
		Text:  ev.Line,
		Time:  ev.Time,
	})
	if err != nil {
		util.Error("[app] encode link event: %v", err)
		return
	}
	a.hub.broadcast(msg)
}

// Listen binds addr and serves in the background. It returns the bound
// address, which differs from addr when addr uses port 0.
func (a *App) Listen(addr string) (string, error) {
	if addr == "" {
		return "", errors.New("[app] empty listen address")
	}
	addr = strings.TrimPrefix(addr, "http://")
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("[app] listen %s: %w", addr, err)
	}
	a.Server = &http.Server{Handler: a.Mux, ReadHeaderTimeout: 5 * time.Second}
	util.Info("[app] relay listening at http://%s", ln.Addr())
	go func() {
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			util.Error("[app] HTTP server error: %v", err)
		}
	}()
	return ln.Addr().String(), nil
}

// Stop gracefully stops the web server, drops websocket clients and closes the archive.
func (a *App) Stop() {
	if a == nil {
		return
	}
	if a.Server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := a.Server.Shutdown(ctx); err != nil {
			util.Warn("[app] HTTP server shutdown error: %v", err)
		}
	}
	a.hub.closeAll()
	if err := a.Archive.Close(); err != nil {
		util.Error("[app] error closing BoltDB: %v", err)
	} else {
		util.Info("[app] closed BoltDB archive")
	}
}
