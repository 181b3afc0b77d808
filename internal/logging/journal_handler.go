package logging

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// JournalPattern matches daily journal file names for retention.
const JournalPattern = "*.txt"

// JournalPath returns the journal file for the day containing t.
func JournalPath(dir string, t time.Time) string {
	return filepath.Join(dir, t.Format(time.DateOnly)+".txt")
}

// JournalHandler appends records to a per-day text file, one line per record:
//
//	<RFC3339 timestamp>:\t[error: ]<message>[ key=value ...]
//
// The file is opened for each record so that day boundaries and external
// rotation need no coordination.
type JournalHandler struct {
	mu    *sync.Mutex
	dir   string
	level slog.Leveler
	fields
}

// NewJournalHandler writes journals under dir for records at or above level.
func NewJournalHandler(dir string, level slog.Leveler) *JournalHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &JournalHandler{mu: &sync.Mutex{}, dir: dir, level: level}
}

func (h *JournalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *JournalHandler) Handle(_ context.Context, record slog.Record) error {
	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	var buf bytes.Buffer
	buf.WriteString(ts.Format(time.RFC3339))
	buf.WriteString(":\t")
	if record.Level >= slog.LevelError {
		buf.WriteString("error: ")
	}
	buf.WriteString(strings.TrimSpace(record.Message))
	appendPairs(&buf, h.pairs(record))
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	f, err := os.OpenFile(JournalPath(h.dir, ts), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return fmt.Errorf("append journal: %w", err)
	}
	return f.Close()
}

func (h *JournalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.fields = h.fields.withAttrs(attrs)
	return &clone
}

func (h *JournalHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.fields = h.fields.withGroup(name)
	return &clone
}
