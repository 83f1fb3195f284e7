// Package memory is the per-repository event store: a bounded append log of
// typed events in a status file, plus a companion markdown session log and a
// handoff note. One process at a time writes; concurrent readers are safe
// because every status mutation is an atomic temp-file-and-rename, with
// advisory file locks as a best-effort second line of defense.
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/synapse/internal/memory"

const (
	statusFileName  = ".synapse_status.json"
	logFileName     = ".synapse_log.md"
	handoffFileName = ".synapse_handoff.md"

	defaultMaxEvents   = 1000
	defaultMaxLogBytes = 10 * 1024 * 1024
)

// Options bounds a store.
type Options struct {
	// MaxEvents caps retained events; oldest are discarded first (default 1000).
	MaxEvents int
	// MaxLogBytes caps the companion log size (default 10 MiB).
	MaxLogBytes int64
	// Logger receives recovered-fault warnings. Nil means silent.
	Logger *zap.Logger
}

// Store is the event store for one repository root.
type Store struct {
	repoPath    string
	statusPath  string
	logPath     string
	handoffPath string
	maxEvents   int
	maxLogBytes int64
	logger      *zap.Logger
}

// Open creates a store rooted at repoPath, creating the backing files if
// they do not exist yet.
func Open(repoPath string, opts Options) (*Store, error) {
	abs, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve repository path: %w", err)
	}

	if opts.MaxEvents <= 0 {
		opts.MaxEvents = defaultMaxEvents
	}
	if opts.MaxLogBytes <= 0 {
		opts.MaxLogBytes = defaultMaxLogBytes
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Store{
		repoPath:    abs,
		statusPath:  filepath.Join(abs, statusFileName),
		logPath:     filepath.Join(abs, logFileName),
		handoffPath: filepath.Join(abs, handoffFileName),
		maxEvents:   opts.MaxEvents,
		maxLogBytes: opts.MaxLogBytes,
		logger:      opts.Logger,
	}

	if err := s.ensureFiles(); err != nil {
		return nil, err
	}
	return s, nil
}

// RepoPath returns the resolved repository root.
func (s *Store) RepoPath() string { return s.repoPath }

// StatusPath returns the path of the status file.
func (s *Store) StatusPath() string { return s.statusPath }

// LogPath returns the path of the companion session log.
func (s *Store) LogPath() string { return s.logPath }

// HandoffPath returns the path of the handoff note.
func (s *Store) HandoffPath() string { return s.handoffPath }

func (s *Store) ensureFiles() error {
	if _, err := os.Stat(s.statusPath); err != nil {
		if err := s.writeStatus(s.initialStatus()); err != nil {
			return fmt.Errorf("failed to initialize status file: %w", err)
		}
	}
	for _, path := range []string{s.logPath, s.handoffPath} {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
		}
		f.Close()
	}
	return nil
}

func (s *Store) initialStatus() *Status {
	return &Status{
		Timestamp:  time.Now().Format(TimestampLayout),
		Agent:      "Synapse System",
		Repository: s.repoPath,
		SessionInfo: SessionInfo{
			HasGit:   false,
			GitClean: true,
		},
		CustomEvents: []Event{},
	}
}

// LoadStatus reads the status file under a shared advisory lock. A missing
// or corrupt file is replaced with a fresh initial state rather than
// surfacing an error.
func (s *Store) LoadStatus() (*Status, error) {
	f, err := os.Open(s.statusPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to open status file: %w", err)
		}
		status := s.initialStatus()
		if err := s.writeStatus(status); err != nil {
			return nil, err
		}
		return status, nil
	}
	defer f.Close()

	lockShared(f)
	defer unlock(f)

	var status Status
	if err := json.NewDecoder(f).Decode(&status); err != nil {
		s.logger.Warn("status file corrupt, recreating from initial state",
			zap.String("path", s.statusPath), zap.Error(err))
		status := s.initialStatus()
		if err := s.writeStatus(status); err != nil {
			return nil, err
		}
		return status, nil
	}
	return &status, nil
}

// SaveStatus atomically replaces the status file.
func (s *Store) SaveStatus(status *Status) error {
	return s.writeStatus(status)
}

// AddEvent appends one event, evicting the oldest beyond the cap, and writes
// the status file back atomically.
func (s *Store) AddEvent(ctx context.Context, eventType, description string, metadata map[string]any) error {
	_, span := otel.Tracer(instrumentationName).Start(ctx, "memory.add_event")
	defer span.End()
	span.SetAttributes(attribute.String("event_type", eventType))

	status, err := s.LoadStatus()
	if err != nil {
		return err
	}

	if metadata == nil {
		metadata = map[string]any{}
	}
	status.CustomEvents = append(status.CustomEvents, Event{
		Type:        eventType,
		Description: description,
		Timestamp:   time.Now(),
		Metadata:    metadata,
	})

	// FIFO eviction: keep the most recent maxEvents.
	if n := len(status.CustomEvents); n > s.maxEvents {
		status.CustomEvents = status.CustomEvents[n-s.maxEvents:]
	}

	return s.writeStatus(status)
}

// Events returns stored events, filtered by type, then time, then limited to
// the most recent, preserving insertion order.
func (s *Store) Events(filter EventFilter) ([]Event, error) {
	status, err := s.LoadStatus()
	if err != nil {
		return nil, err
	}

	events := status.CustomEvents
	if filter.Type != "" {
		kept := events[:0:0]
		for _, e := range events {
			if e.Type == filter.Type {
				kept = append(kept, e)
			}
		}
		events = kept
	}
	if !filter.Since.IsZero() {
		kept := events[:0:0]
		for _, e := range events {
			if !e.Timestamp.Before(filter.Since) {
				kept = append(kept, e)
			}
		}
		events = kept
	}
	if filter.Limit > 0 && len(events) > filter.Limit {
		events = events[len(events)-filter.Limit:]
	}
	return events, nil
}

// AppendLog appends a markdown block to the companion session log under an
// exclusive advisory lock, then bounds the file size. Truncation failures
// are logged and swallowed; the append itself is the durable part.
func (s *Store) AppendLog(content string) error {
	f, err := os.OpenFile(s.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}

	lockExclusive(f)
	_, werr := f.WriteString("\n" + content + "\n")
	if werr == nil {
		werr = f.Sync()
	}
	unlock(f)
	f.Close()
	if werr != nil {
		return fmt.Errorf("failed to append log: %w", werr)
	}

	if err := s.truncateLog(); err != nil {
		s.logger.Warn("log truncation failed", zap.Error(err))
	}
	return nil
}

// truncateLog rewrites the log to its trailing maxLogBytes when it has grown
// past the cap, realigning to the next session separator when one is found
// so the file starts at a record boundary.
func (s *Store) truncateLog() error {
	info, err := os.Stat(s.logPath)
	if err != nil || info.Size() <= s.maxLogBytes {
		return err
	}

	f, err := os.Open(s.logPath)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Seek(-s.maxLogBytes, io.SeekEnd); err != nil {
		return err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return err
	}

	if idx := bytes.Index(data, []byte(SessionSeparator)); idx >= 0 {
		data = data[idx:]
	}

	return atomicWrite(s.logPath, data)
}

// ReadHandoff returns the handoff note, or empty when absent.
func (s *Store) ReadHandoff() string {
	data, err := os.ReadFile(s.handoffPath)
	if err != nil {
		return ""
	}
	return string(data)
}

// WriteHandoff atomically replaces the handoff note.
func (s *Store) WriteHandoff(content string) error {
	return atomicWrite(s.handoffPath, []byte(content))
}

func (s *Store) writeStatus(status *Status) error {
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode status: %w", err)
	}
	return atomicWrite(s.statusPath, data)
}

// atomicWrite writes data to a temp file in the target's directory, fsyncs,
// and renames it over the target. Readers never observe a partial file.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
