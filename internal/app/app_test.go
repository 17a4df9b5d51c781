package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CanSatGS/internal/core"
	"CanSatGS/internal/link"
	"CanSatGS/internal/model"
)

type fakeController struct {
	mu       sync.Mutex
	open     bool
	commands []string
}

func (f *fakeController) Open() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.open {
		return link.ErrAlreadyOpen
	}
	f.open = true
	return nil
}

func (f *fakeController) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return link.ErrNotOpen
	}
	f.open = false
	return nil
}

func (f *fakeController) SendCommand(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return link.ErrNotOpen
	}
	f.commands = append(f.commands, text)
	return nil
}

func (f *fakeController) Snapshot() core.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := link.StateClosed
	if f.open {
		st = link.StateOpen
	}
	return core.Snapshot{State: st, Transport: model.TransportFile}
}

func newTestApp(t *testing.T) (*App, *fakeController, *httptest.Server) {
	t.Helper()
	ctrl := &fakeController{}
	a, err := NewApp(ctrl, filepath.Join(t.TempDir(), "db", "telemetry.db"))
	require.NoError(t, err)
	srv := httptest.NewServer(a.Mux)
	t.Cleanup(func() {
		srv.Close()
		a.Stop()
	})
	return a, ctrl, srv
}

func telemetry(alt float64) model.Event {
	b := model.NewRecordBuilder(2)
	b.Number("altitude", alt)
	b.Text("software_state", "ASCENT")
	return model.Event{Kind: model.EventTelemetry, Text: "x", Record: b.Build(), Time: time.Now()}
}

func TestArchiveLatestAndRecords(t *testing.T) {
	a, _, srv := newTestApp(t)

	resp, err := http.Get(srv.URL + "/api/latest")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	for _, alt := range []float64{1, 2, 3} {
		a.OnEvent(telemetry(alt))
	}
	a.OnEvent(model.Event{Kind: model.EventMessage, Text: "booting", Time: time.Now()})
	n, err := a.Archive.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	resp, err = http.Get(srv.URL + "/api/latest")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var latest struct {
		Record map[string]any `json:"record"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&latest))
	assert.Equal(t, 3.0, latest.Record["altitude"])
	assert.Equal(t, "ASCENT", latest.Record["software_state"])

	resp2, err := http.Get(srv.URL + "/api/records?limit=2")
	require.NoError(t, err)
	defer resp2.Body.Close()
	var recs []struct {
		Record map[string]any `json:"record"`
	}
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&recs))
	require.Len(t, recs, 2)
	assert.Equal(t, 3.0, recs[0].Record["altitude"])
	assert.Equal(t, 2.0, recs[1].Record["altitude"])

	resp3, err := http.Get(srv.URL + "/api/records?limit=abc")
	require.NoError(t, err)
	resp3.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp3.StatusCode)
}

func TestLinkControlEndpoints(t *testing.T) {
	_, ctrl, srv := newTestApp(t)

	post := func(path, contentType, body string) int {
		resp, err := http.Post(srv.URL+path, contentType, strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusConflict, post("/api/command", "text/plain", "ARM"))
	assert.Equal(t, http.StatusAccepted, post("/api/link/open", "", ""))
	assert.Equal(t, http.StatusConflict, post("/api/link/open", "", ""))
	assert.Equal(t, http.StatusAccepted, post("/api/command", "text/plain", "ARM"))
	assert.Equal(t, http.StatusAccepted, post("/api/command", "application/json", `{"command":"Soft Reset"}`))
	assert.Equal(t, http.StatusBadRequest, post("/api/command", "application/json", `{`))

	resp, err := http.Get(srv.URL + "/api/link")
	require.NoError(t, err)
	var snap map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	resp.Body.Close()
	assert.Equal(t, "open", snap["state"])

	assert.Equal(t, http.StatusAccepted, post("/api/link/close", "", ""))
	assert.Equal(t, http.StatusConflict, post("/api/link/close", "", ""))
	assert.Equal(t, []string{"ARM", "Soft Reset"}, ctrl.commands)

	resp, err = http.Get(srv.URL + "/api/link/open")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestWebsocketStreamsEvents(t *testing.T) {
	a, _, srv := newTestApp(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return a.hub.count() == 1 }, time.Second, 5*time.Millisecond)

	a.OnLinkEvent(link.Event{Kind: link.EventStatus, Line: link.StatusConnected, State: link.StateOpen, Time: time.Now()})
	a.OnLinkEvent(link.Event{Kind: link.EventReceived, Line: "ignored", State: link.StateOpen, Time: time.Now()})
	a.OnEvent(telemetry(15.2))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var status map[string]any
	require.NoError(t, conn.ReadJSON(&status))
	assert.Equal(t, "link", status["kind"])
	assert.Equal(t, "status", status["event"])
	assert.Equal(t, "open", status["state"])
	assert.Equal(t, "Connected", status["text"])

	var ev map[string]any
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "telemetry", ev["kind"])
	rec, ok := ev["record"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 15.2, rec["altitude"])
}

func TestListenServesRoutes(t *testing.T) {
	a, err := NewApp(&fakeController{}, filepath.Join(t.TempDir(), "telemetry.db"))
	require.NoError(t, err)
	defer a.Stop()

	addr, err := a.Listen("127.0.0.1:0")
	require.NoError(t, err)
	resp, err := http.Get("http://" + addr + "/api/link")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
