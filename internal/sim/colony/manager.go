package colony

import "voxelcolony/internal/sim/path"

// Crew owns the worker collection and the one shared pathfinder. Workers are
// updated strictly in spawn order inside a single goroutine; that sequencing
// is what makes the unlocked claim read-modify-write safe.
type Crew struct {
	workers []*Worker
	nextID  uint64
	finder  *path.Finder
	params  Params

	// Audit, when set, observes every block mutation a worker commits while
	// finishing a task. The sim shell feeds it into the tick/audit logs.
	Audit func(workerID uint64, t *Task, from, to uint16)
}

func NewCrew(params Params) *Crew {
	params.applyDefaults()
	return &Crew{
		finder: path.NewFinder(),
		params: params,
	}
}

// Spawn appends a worker at a continuous position with a fresh monotonic id.
func (c *Crew) Spawn(x, y, z float64) *Worker {
	c.nextID++
	w := newWorker(c.nextID, x, y, z)
	c.workers = append(c.workers, w)
	return w
}

// UpdateAll ticks every worker once, in collection order, then compacts the
// queue exactly once so in-tick task lookups never dangle.
func (c *Crew) UpdateAll(dt float64, g Grid, q *Queue) {
	for _, w := range c.workers {
		w.update(dt, g, q, c)
	}
	q.CleanupCompleted()
}

func (c *Crew) Get(id uint64) *Worker {
	for _, w := range c.workers {
		if w.ID == id {
			return w
		}
	}
	return nil
}

// Workers returns the collection in spawn order; callers must treat it as
// read-only.
func (c *Crew) Workers() []*Worker {
	return c.workers
}

func (c *Crew) Params() Params { return c.params }

// Finder exposes the shared pathfinder for tuning (expansion cap).
func (c *Crew) Finder() *path.Finder { return c.finder }
