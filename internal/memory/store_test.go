package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), opts)
	require.NoError(t, err)
	return s
}

func TestOpen_CreatesFiles(t *testing.T) {
	s := newTestStore(t, Options{})

	assert.FileExists(t, s.StatusPath())
	assert.FileExists(t, s.LogPath())
	assert.FileExists(t, s.HandoffPath())

	status, err := s.LoadStatus()
	require.NoError(t, err)
	assert.Equal(t, "Synapse System", status.Agent)
	assert.Empty(t, status.CustomEvents)
	assert.True(t, status.SessionInfo.GitClean)
}

func TestAddEvent_CapInvariant(t *testing.T) {
	const maxEvents = 1000
	s := newTestStore(t, Options{MaxEvents: maxEvents})
	ctx := context.Background()

	// Appending past the cap keeps exactly the most recent cap events in
	// original order.
	status, err := s.LoadStatus()
	require.NoError(t, err)
	for i := 0; i < 1025; i++ {
		status.CustomEvents = append(status.CustomEvents, Event{
			Type:        "bulk",
			Description: fmt.Sprintf("event-%d", i),
			Timestamp:   time.Now(),
			Metadata:    map[string]any{},
		})
	}
	require.NoError(t, s.SaveStatus(status))
	require.NoError(t, s.AddEvent(ctx, "bulk", "event-1025", nil))

	events, err := s.Events(EventFilter{})
	require.NoError(t, err)
	require.Len(t, events, maxEvents)
	assert.Equal(t, "event-26", events[0].Description)
	assert.Equal(t, "event-1025", events[maxEvents-1].Description)
}

func TestAddEvent_PersistsMetadata(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()

	require.NoError(t, s.AddEvent(ctx, "api_call", "called /users", map[string]any{
		"endpoint": "/users",
		"status":   200,
	}))

	events, err := s.Events(EventFilter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "api_call", events[0].Type)
	assert.Equal(t, "/users", events[0].Metadata["endpoint"])
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestEvents_FilterComposition(t *testing.T) {
	s := newTestStore(t, Options{})
	ctx := context.Background()

	cutoff := time.Now()
	require.NoError(t, s.AddEvent(ctx, "api_call", "old-ish", nil))
	require.NoError(t, s.AddEvent(ctx, "error", "wrong type", nil))
	for i := 0; i < 5; i++ {
		require.NoError(t, s.AddEvent(ctx, "api_call", fmt.Sprintf("call-%d", i), nil))
	}

	events, err := s.Events(EventFilter{Type: "api_call", Since: cutoff, Limit: 3})
	require.NoError(t, err)

	// Type and time filters apply first, then the limit keeps the tail.
	require.Len(t, events, 3)
	assert.Equal(t, "call-2", events[0].Description)
	assert.Equal(t, "call-4", events[2].Description)
	for _, e := range events {
		assert.Equal(t, "api_call", e.Type)
		assert.False(t, e.Timestamp.Before(cutoff))
	}
}

func TestLoadStatus_CorruptFileRecreated(t *testing.T) {
	s := newTestStore(t, Options{})
	require.NoError(t, os.WriteFile(s.StatusPath(), []byte("{truncated"), 0o644))

	status, err := s.LoadStatus()
	require.NoError(t, err)
	assert.Empty(t, status.CustomEvents)

	// The recreated file is valid JSON again.
	data, err := os.ReadFile(s.StatusPath())
	require.NoError(t, err)
	assert.True(t, json.Valid(data))
}

func TestStatusFile_StableIndentation(t *testing.T) {
	s := newTestStore(t, Options{})
	require.NoError(t, s.AddEvent(context.Background(), "error", "boom", nil))

	data, err := os.ReadFile(s.StatusPath())
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"custom_events\"")
}

func TestAppendLog_TruncatesPastCeiling(t *testing.T) {
	const ceiling = 4096
	s := newTestStore(t, Options{MaxLogBytes: ceiling})

	block := SessionSeparator + "\n" + strings.Repeat("log line\n", 40)
	for i := 0; i < 20; i++ {
		require.NoError(t, s.AppendLog(block))
	}

	info, err := os.Stat(s.LogPath())
	require.NoError(t, err)
	assert.LessOrEqual(t, info.Size(), int64(ceiling))

	// After realignment the file starts at a session boundary and retains
	// the most recent content.
	data, err := os.ReadFile(s.LogPath())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), SessionSeparator))
}

func TestHandoffRoundTrip(t *testing.T) {
	s := newTestStore(t, Options{})
	assert.Empty(t, s.ReadHandoff())

	require.NoError(t, s.WriteHandoff("# Handoff\nnext steps"))
	assert.Equal(t, "# Handoff\nnext steps", s.ReadHandoff())
}

func TestRegistry_ReusesHandles(t *testing.T) {
	reg := NewRegistry(Options{})
	dir := t.TempDir()

	a, err := reg.Get(dir)
	require.NoError(t, err)
	b, err := reg.Get(dir + string(os.PathSeparator) + ".")
	require.NoError(t, err)
	assert.Same(t, a, b)

	reg.Reset()
	c, err := reg.Get(dir)
	require.NoError(t, err)
	assert.NotSame(t, a, c)
}
