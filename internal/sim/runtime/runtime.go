// Package runtime wires the colony simulation into a single-goroutine tick
// loop. All sim state (grid, queue, crew) is touched only from Run's
// goroutine; channels are the only way in.
package runtime

import (
	"sync/atomic"

	"voxelcolony/internal/sim/colony"
	"voxelcolony/internal/sim/world"
)

type Config struct {
	WorldID    string
	TickRateHz int
	Workers    int

	// PathMaxExpansions caps the shared pathfinder; zero keeps its default.
	PathMaxExpansions int

	TickLogEveryTicks int
}

func (c *Config) applyDefaults() {
	if c.WorldID == "" {
		c.WorldID = "colony_1"
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = 20
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.TickLogEveryTicks <= 0 {
		c.TickLogEveryTicks = 100
	}
}

// TickLogEntry is one periodic sample of loop health.
type TickLogEntry struct {
	Tick           uint64 `json:"tick"`
	DurationMicros int64  `json:"duration_us"`
	Workers        int    `json:"workers"`
	Pending        int    `json:"pending"`
	InProgress     int    `json:"in_progress"`
}

// AuditEntry records one block mutation committed by a worker.
type AuditEntry struct {
	Tick   uint64 `json:"tick"`
	Worker uint64 `json:"worker"`
	Pos    [3]int `json:"pos"`
	From   uint16 `json:"from"`
	To     uint16 `json:"to"`
	Action string `json:"action"` // task kind
}

// Optional sinks (may be nil). Implemented in internal/persistence/*.
type TickLogger interface {
	WriteTick(TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(AuditEntry) error
}

type designateReq struct {
	kind     colony.TaskKind
	pos      world.Vec3i
	material uint16
	resp     chan uint64
}

type observerJoinReq struct {
	out     chan []byte
	surface bool
	resp    chan uint64
}

type observerState struct {
	id  uint64
	out chan []byte
}

type Sim struct {
	cfg   Config
	store *world.ChunkStore
	queue *colony.Queue
	crew  *colony.Crew

	tick atomic.Uint64

	designate     chan designateReq
	observerJoin  chan observerJoinReq
	observerLeave chan uint64
	stop          chan struct{}

	observers  map[uint64]*observerState
	nextObsID  uint64
	tickLogger TickLogger
	auditLog   AuditLogger

	// Per-tick audit buffer, reset at the top of each step and echoed into
	// the observer frame.
	audits []AuditEntry
}

func New(cfg Config, store *world.ChunkStore, params colony.Params) *Sim {
	cfg.applyDefaults()
	s := &Sim{
		cfg:           cfg,
		store:         store,
		queue:         colony.NewQueue(),
		crew:          colony.NewCrew(params),
		designate:     make(chan designateReq, 64),
		observerJoin:  make(chan observerJoinReq),
		observerLeave: make(chan uint64),
		stop:          make(chan struct{}),
		observers:     map[uint64]*observerState{},
	}
	s.crew.Audit = s.onBlockChange
	if cfg.PathMaxExpansions > 0 {
		s.crew.Finder().MaxExpansions = cfg.PathMaxExpansions
	}
	s.spawnCrew()
	return s
}

// SetTickLogger and SetAuditLogger must be called before Run.
func (s *Sim) SetTickLogger(l TickLogger) { s.tickLogger = l }
func (s *Sim) SetAuditLogger(l AuditLogger) { s.auditLog = l }

// spawnCrew places the initial workers on the terrain surface around the
// world center, spread so they don't stack on one column.
func (s *Sim) spawnCrew() {
	cx := s.store.SizeX() / 2
	cz := s.store.SizeZ() / 2
	for i := 0; i < s.cfg.Workers; i++ {
		x := cx + (i%4)*2
		z := cz + (i/4)*2
		y := s.store.SurfaceY(x, z)
		s.crew.Spawn(float64(x), float64(y), float64(z))
	}
}

func (s *Sim) CurrentTick() uint64 { return s.tick.Load() }
func (s *Sim) Config() Config { return s.cfg }

// Store exposes immutable world parameters for bootstrap responses; callers
// must not read blocks through it while the loop runs.
func (s *Sim) Store() *world.ChunkStore { return s.store }

func (s *Sim) Stop() { close(s.stop) }

func (s *Sim) onBlockChange(workerID uint64, t *colony.Task, from, to uint16) {
	e := AuditEntry{
		Tick:   s.tick.Load(),
		Worker: workerID,
		Pos:    t.Pos.ToArray(),
		From:   from,
		To:     to,
		Action: string(t.Kind),
	}
	s.audits = append(s.audits, e)
	if s.auditLog != nil {
		_ = s.auditLog.WriteAudit(e)
	}
}
