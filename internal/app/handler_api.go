package app

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"CanSatGS/internal/link"
	"CanSatGS/internal/util"
)

const (
	defaultRecordLimit = 100
	maxRecordLimit     = 5000
	maxCommandBody     = 4 << 10
)

type commandRequest struct {
	Command string `json:"command"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		util.Warn("[app] failed to write response: %v", err)
	}
}

// linkError maps link errors to HTTP status codes.
func linkError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, link.ErrNotOpen), errors.Is(err, link.ErrAlreadyOpen), errors.Is(err, link.ErrClosing):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}

// handleLatest returns the newest archived telemetry record.
func (a *App) handleLatest(w http.ResponseWriter, r *http.Request) {
	rec, err := a.Archive.Latest()
	if err != nil {
		http.Error(w, "failed to read telemetry", http.StatusInternalServerError)
		return
	}
	if rec == nil {
		http.Error(w, "no telemetry data", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleRecords returns up to ?limit= records, newest first.
func (a *App) handleRecords(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecordLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxRecordLimit)
	}
	recs, err := a.Archive.Recent(limit)
	if err != nil {
		http.Error(w, "failed to read telemetry", http.StatusInternalServerError)
		return
	}
	if recs == nil {
		recs = []json.RawMessage{}
	}
	writeJSON(w, http.StatusOK, recs)
}

// handleCommand queues an uplink command. The body is either JSON
// {"command": "..."} or plain text.
func (a *App) handleCommand(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCommandBody))
	if err != nil {
		http.Error(w, "failed to read command", http.StatusBadRequest)
		return
	}
	text := string(body)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req commandRequest
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		text = req.Command
	}
	if err := a.ctrl.SendCommand(text); err != nil {
		linkError(w, err)
		return
	}
	util.Debug("[app] queued command %q", strings.TrimSpace(text))
	w.WriteHeader(http.StatusAccepted)
}

// handleLink reports the station snapshot.
func (a *App) handleLink(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.ctrl.Snapshot())
}

func (a *App) handleLinkOpen(w http.ResponseWriter, r *http.Request) {
	if err := a.ctrl.Open(); err != nil {
		linkError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (a *App) handleLinkClose(w http.ResponseWriter, r *http.Request) {
	if err := a.ctrl.Close(); err != nil {
		linkError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
