package core

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CanSatGS/internal/link"
	"CanSatGS/internal/model"
)

type recorder struct {
	mu     sync.Mutex
	events []model.Event
	link   []link.EventKind
}

func (r *recorder) OnEvent(ev model.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) OnLinkEvent(ev link.Event) {
	r.mu.Lock()
	r.link = append(r.link, ev.Kind)
	r.mu.Unlock()
}

func (r *recorder) texts(kind model.EventKind) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		if ev.Kind == kind {
			out = append(out, ev.Text)
		}
	}
	return out
}

func (r *recorder) linkKinds() []link.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]link.EventKind(nil), r.link...)
}

func replayConfig(t *testing.T, lines string) *model.Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "flight.txt")
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o644))

	cfg := model.DefaultConfig()
	cfg.Link.Transport = model.TransportFile
	cfg.Link.File.Path = path
	cfg.Link.File.LineIntervalMs = 1
	cfg.Link.Retry.DelayMs = 1
	cfg.Schema = []model.Field{
		{Name: "mission_time", Scale: model.Exp(-3)},
		{Name: "altitude", Scale: model.Exp(-1)},
		{Name: "software_state", Scale: model.Raw()},
	}
	cfg.Log.Enabled = true
	cfg.Log.RawFile = filepath.Join(dir, "raw.txt")
	cfg.Log.CSVFile = filepath.Join(dir, "packets.csv")
	return cfg
}

func TestStationReplayPipeline(t *testing.T) {
	cfg := replayConfig(t, "1000,152,ASCENT\nbooting\n1,2,3,4\n")
	st, err := NewStation(cfg)
	require.NoError(t, err)

	rec := &recorder{}
	require.NoError(t, st.Subscribe(rec))
	require.Error(t, st.Subscribe(struct{}{}))

	st.Start()
	require.NoError(t, st.Open())

	require.Eventually(t, func() bool {
		return len(rec.texts(model.EventWarning)) > 0
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{"mission_time,altitude,software_state"}, rec.texts(model.EventHeader))
	assert.Contains(t, rec.texts(model.EventPacket), "1000,152,ASCENT")
	assert.Contains(t, rec.texts(model.EventMessage), "Connected")
	assert.Contains(t, rec.texts(model.EventMessage), "booting")
	assert.Contains(t, rec.texts(model.EventWarning), "1,2,3,4")

	require.NoError(t, st.SendCommand("Arm for launch"))
	require.Eventually(t, func() bool {
		return len(rec.texts(model.EventCommand)) > 0
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "CMD TX: ARM", rec.texts(model.EventCommand)[0])

	snap := st.Snapshot()
	assert.Equal(t, model.TransportFile, snap.Transport)
	require.NotNil(t, snap.Last)
	alt, ok := snap.Last.Float("altitude")
	require.True(t, ok)
	assert.InDelta(t, 15.2, alt, 1e-9)
	state, _ := snap.Last.Text("software_state")
	assert.Equal(t, "ASCENT", state)

	st.Stop()
	assert.Equal(t, link.StateClosed, st.Link.State())
	kinds := rec.linkKinds()
	require.NotEmpty(t, kinds)
	assert.Equal(t, link.EventOpened, kinds[0])
	assert.Equal(t, link.EventClosed, kinds[len(kinds)-1])

	csv, err := os.ReadFile(cfg.Log.CSVFile)
	require.NoError(t, err)
	assert.Contains(t, string(csv), "mission_time,altitude,software_state\n1000,152,ASCENT\n")
}

func (r *recorder) count(kind link.EventKind) int {
	n := 0
	for _, k := range r.linkKinds() {
		if k == kind {
			n++
		}
	}
	return n
}

func TestStationStopWaitsForCloseInFlight(t *testing.T) {
	st, err := NewStation(replayConfig(t, "1000,152,ASCENT\n"))
	require.NoError(t, err)
	rec := &recorder{}
	require.NoError(t, st.Subscribe(rec))

	st.Start()
	require.NoError(t, st.Open())
	require.Eventually(t, func() bool {
		return len(rec.texts(model.EventPacket)) > 0
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, st.Close())
	st.Stop()

	kinds := rec.linkKinds()
	require.NotEmpty(t, kinds)
	assert.Equal(t, link.EventClosed, kinds[len(kinds)-1])
	assert.Equal(t, 1, rec.count(link.EventClosed))
	assert.Equal(t, link.StateClosed, st.Link.State())
	select {
	case <-st.Link.Idle():
	default:
		t.Fatal("link worker still running after Stop")
	}
}

func TestStationRestart(t *testing.T) {
	st, err := NewStation(replayConfig(t, "1000,152,ASCENT\n"))
	require.NoError(t, err)
	rec := &recorder{}
	require.NoError(t, st.Subscribe(rec))

	st.Start()
	require.NoError(t, st.Open())
	require.Eventually(t, func() bool { return rec.count(link.EventOpened) == 1 }, 2*time.Second, 5*time.Millisecond)
	st.Stop()

	st.Start()
	defer st.Stop()
	require.NoError(t, st.Open())
	require.Eventually(t, func() bool { return rec.count(link.EventOpened) == 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestStationSendCommandRequiresOpenLink(t *testing.T) {
	cfg := replayConfig(t, "1,2,3\n")
	st, err := NewStation(cfg)
	require.NoError(t, err)
	st.Start()
	defer st.Stop()

	assert.ErrorIs(t, st.SendCommand("ARM"), link.ErrNotOpen)
	assert.Error(t, st.SendCommand("   "))
}

func TestPolicyFor(t *testing.T) {
	cfg := model.DefaultConfig()
	p := PolicyFor(cfg.Link)
	assert.Equal(t, model.DefaultSerialRetries, p.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, p.RetryDelay)
	assert.Zero(t, p.LineInterval)

	cfg.Link.Transport = model.TransportFile
	p = PolicyFor(cfg.Link)
	assert.Equal(t, model.DefaultFileRetries, p.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, p.LineInterval)
}
