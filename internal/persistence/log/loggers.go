// Package log persists tick and audit streams as hourly-rotated
// zstd-compressed JSONL files. These are write-only observability sinks; the
// sim never reads them back.
package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"voxelcolony/internal/sim/runtime"
)

type JSONLZstdWriter struct {
	baseDir string
	prefix  string

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
	}
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := time.Now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	p := w.pathForHour(hour)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.curHour = hour
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriter(enc)
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	if w.f == nil {
		return nil
	}
	var firstErr error
	if err := w.w.Flush(); err != nil {
		firstErr = err
	}
	if err := w.enc.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.f.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	w.curHour = ""
	w.f = nil
	w.enc = nil
	w.w = nil
	return firstErr
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// TickWriter adapts JSONLZstdWriter to runtime.TickLogger.
type TickWriter struct {
	w *JSONLZstdWriter
}

func NewTickWriter(baseDir string) *TickWriter {
	return &TickWriter{w: NewJSONLZstdWriter(baseDir, "ticks")}
}

func (t *TickWriter) WriteTick(e runtime.TickLogEntry) error { return t.w.Write(e) }
func (t *TickWriter) Close() error                           { return t.w.Close() }

// AuditWriter adapts JSONLZstdWriter to runtime.AuditLogger.
type AuditWriter struct {
	w *JSONLZstdWriter
}

func NewAuditWriter(baseDir string) *AuditWriter {
	return &AuditWriter{w: NewJSONLZstdWriter(baseDir, "audits")}
}

func (a *AuditWriter) WriteAudit(e runtime.AuditEntry) error { return a.w.Write(e) }
func (a *AuditWriter) Close() error                          { return a.w.Close() }
