package log

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"

	"voxelcolony/internal/sim/runtime"
)

func TestAuditWriter_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	w := NewAuditWriter(dir)

	want := runtime.AuditEntry{Tick: 9, Worker: 2, Pos: [3]int{1, 2, 3}, From: 3, To: 0, Action: "DIG"}
	if err := w.WriteAudit(want); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "audits-*.jsonl.zst"))
	if err != nil || len(files) != 1 {
		t.Fatalf("expected one audit file, got %v (%v)", files, err)
	}
	f, err := os.Open(files[0])
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	if !sc.Scan() {
		t.Fatalf("no lines in audit log")
	}
	var got runtime.AuditEntry
	if err := json.Unmarshal(sc.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got != want {
		t.Fatalf("round trip = %+v want %+v", got, want)
	}
}

func TestTickWriter_WritesLines(t *testing.T) {
	dir := t.TempDir()
	w := NewTickWriter(dir)
	for i := 0; i < 3; i++ {
		if err := w.WriteTick(runtime.TickLogEntry{Tick: uint64(i)}); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	files, _ := filepath.Glob(filepath.Join(dir, "ticks-*.jsonl.zst"))
	if len(files) != 1 {
		t.Fatalf("expected one tick file, got %v", files)
	}
}
