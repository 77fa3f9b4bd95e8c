// Package indexdb keeps a small sqlite index of tick stats and block audits
// so the admin surface can query recent history without scanning the JSONL
// logs. It is an observability index only; the sim never restores state
// from it.
package indexdb

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"

	_ "modernc.org/sqlite"

	"voxelcolony/internal/sim/runtime"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqAudit
)

type req struct {
	kind  reqKind
	tick  runtime.TickLogEntry
	audit runtime.AuditEntry
}

const schema = `
CREATE TABLE IF NOT EXISTS ticks (
	tick        INTEGER PRIMARY KEY,
	duration_us INTEGER NOT NULL,
	workers     INTEGER NOT NULL,
	pending     INTEGER NOT NULL,
	in_progress INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS audits (
	seq    INTEGER PRIMARY KEY AUTOINCREMENT,
	tick   INTEGER NOT NULL,
	worker INTEGER NOT NULL,
	x      INTEGER NOT NULL,
	y      INTEGER NOT NULL,
	z      INTEGER NOT NULL,
	block_from INTEGER NOT NULL,
	block_to   INTEGER NOT NULL,
	action TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS audits_tick ON audits(tick);
`

func Open(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Single writer goroutine; a second connection would only contend.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("indexdb schema: %w", err)
	}

	x := &SQLiteIndex{
		db: db,
		ch: make(chan req, 1024),
	}
	x.wg.Add(1)
	go x.writer()
	return x, nil
}

func (x *SQLiteIndex) writer() {
	defer x.wg.Done()
	for r := range x.ch {
		switch r.kind {
		case reqTick:
			_, _ = x.db.Exec(
				`INSERT OR REPLACE INTO ticks (tick, duration_us, workers, pending, in_progress) VALUES (?,?,?,?,?)`,
				r.tick.Tick, r.tick.DurationMicros, r.tick.Workers, r.tick.Pending, r.tick.InProgress)
		case reqAudit:
			_, _ = x.db.Exec(
				`INSERT INTO audits (tick, worker, x, y, z, block_from, block_to, action) VALUES (?,?,?,?,?,?,?,?)`,
				r.audit.Tick, r.audit.Worker,
				r.audit.Pos[0], r.audit.Pos[1], r.audit.Pos[2],
				r.audit.From, r.audit.To, r.audit.Action)
		}
	}
}

// WriteTick enqueues; a full queue drops the sample rather than stalling the
// tick loop.
func (x *SQLiteIndex) WriteTick(e runtime.TickLogEntry) error {
	if x.closed.Load() {
		return nil
	}
	select {
	case x.ch <- req{kind: reqTick, tick: e}:
	default:
	}
	return nil
}

func (x *SQLiteIndex) WriteAudit(e runtime.AuditEntry) error {
	if x.closed.Load() {
		return nil
	}
	select {
	case x.ch <- req{kind: reqAudit, audit: e}:
	default:
	}
	return nil
}

func (x *SQLiteIndex) Close() error {
	var err error
	x.once.Do(func() {
		x.closed.Store(true)
		close(x.ch)
		x.wg.Wait()
		err = x.db.Close()
	})
	return err
}

// RecentAudits returns the newest block mutations, newest first.
func (x *SQLiteIndex) RecentAudits(ctx context.Context, limit int) ([]runtime.AuditEntry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := x.db.QueryContext(ctx,
		`SELECT tick, worker, x, y, z, block_from, block_to, action FROM audits ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []runtime.AuditEntry
	for rows.Next() {
		var e runtime.AuditEntry
		if err := rows.Scan(&e.Tick, &e.Worker, &e.Pos[0], &e.Pos[1], &e.Pos[2], &e.From, &e.To, &e.Action); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// TickCount reports how many tick samples have been indexed.
func (x *SQLiteIndex) TickCount(ctx context.Context) (int, error) {
	var n int
	err := x.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ticks`).Scan(&n)
	return n, err
}
