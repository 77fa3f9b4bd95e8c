package colony

import (
	"math"
	"math/rand"

	"voxelcolony/internal/sim/path"
	"voxelcolony/internal/sim/world"
)

// Grid is the voxel surface the colony mutates: pathfinding reads plus block
// read/write for executing tasks.
type Grid interface {
	path.Grid
	GetBlock(world.Vec3i) uint16
	SetBlock(world.Vec3i, uint16)
}

type State uint8

const (
	StateIdle State = iota
	StateMoving
	StateWorking
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateMoving:
		return "MOVING"
	case StateWorking:
		return "WORKING"
	}
	return "UNKNOWN"
}

// Params tunes worker behavior. Zero values fall back to defaults so a bare
// Params{} gives a playable colony.
type Params struct {
	MoveSpeed        float64 // blocks per second
	WorkSeconds      float64
	IdlePauseSeconds float64
	WanderWaitMin    float64
	WanderWaitMax    float64
	WanderRadiusMin  int
	WanderRadiusMax  int
	WanderAttempts   int
}

func (p *Params) applyDefaults() {
	if p.MoveSpeed <= 0 {
		p.MoveSpeed = 4.0
	}
	if p.WorkSeconds <= 0 {
		p.WorkSeconds = 0.5
	}
	if p.IdlePauseSeconds <= 0 {
		p.IdlePauseSeconds = 0.5
	}
	if p.WanderWaitMin <= 0 {
		p.WanderWaitMin = 2.0
	}
	if p.WanderWaitMax < p.WanderWaitMin {
		p.WanderWaitMax = p.WanderWaitMin + 4.0
	}
	if p.WanderRadiusMin <= 0 {
		p.WanderRadiusMin = 1
	}
	if p.WanderRadiusMax < p.WanderRadiusMin {
		p.WanderRadiusMax = 10
	}
	if p.WanderAttempts <= 0 {
		p.WanderAttempts = 8
	}
}

// Diagnostic reason codes recorded by workers; simulation never branches on
// them, they exist for the tick log and HUD.
const (
	ReasonNoPath        = "NO_PATH"
	ReasonNoTasks       = "NO_TASKS"
	ReasonWanderBlocked = "WANDER_BLOCKED"
)

// Diag is the observability side of a worker, kept apart from simulation
// state so tests and HUD reads never touch timers or the owned path.
type Diag struct {
	Searches   uint64
	Claims     uint64
	PathFails  uint64
	Completed  uint64
	Wanders    uint64
	LastReason string
}

const arriveEpsilon = 0.01

// Worker is one colony agent. X/Y/Z are continuous for sub-cell interpolation;
// Cell() is the voxel it logically occupies. The path slice is owned by the
// worker and held exactly while State == StateMoving.
type Worker struct {
	ID      uint64
	X, Y, Z float64
	State   State

	// TaskID is non-zero only while a claimed task drives MOVING/WORKING;
	// wandering moves with TaskID == 0.
	TaskID uint64

	route    []world.Vec3i
	routeIdx int

	workTimer  float64
	idleTimer  float64
	wanderWait float64

	rng  *rand.Rand
	Diag Diag
}

func newWorker(id uint64, x, y, z float64) *Worker {
	seed := int64(id)<<32 ^ int64(x)*73856093 ^ int64(y)*19349663 ^ int64(z)*83492791
	w := &Worker{
		ID:    id,
		X:     x,
		Y:     y,
		Z:     z,
		State: StateIdle,
		rng:   rand.New(rand.NewSource(seed)),
	}
	w.wanderWait = 1.0 + w.rng.Float64()*3.0
	return w
}

func (w *Worker) Cell() world.Vec3i {
	return world.Vec3i{
		X: int(math.Round(w.X)),
		Y: int(math.Round(w.Y)),
		Z: int(math.Round(w.Z)),
	}
}

// RouteRemaining is the number of path cells still ahead of the worker.
func (w *Worker) RouteRemaining() int {
	if w.State != StateMoving {
		return 0
	}
	return len(w.route) - w.routeIdx
}

func (w *Worker) update(dt float64, g Grid, q *Queue, c *Crew) {
	switch w.State {
	case StateIdle:
		w.updateIdle(dt, g, q, c.finder, c.params)
	case StateMoving:
		w.updateMoving(dt, c.params)
	case StateWorking:
		w.updateWorking(dt, g, q, c)
	}
}

func (w *Worker) updateIdle(dt float64, g Grid, q *Queue, f *path.Finder, p Params) {
	if w.idleTimer > 0 {
		w.idleTimer -= dt
		if w.idleTimer > 0 {
			return
		}
	}
	if w.trySearchTask(g, q, f, p) {
		return
	}
	w.wanderWait -= dt
	if w.wanderWait > 0 {
		return
	}
	w.tryWander(g, f, p)
}

// trySearchTask looks for reachable pending work in priority order: dig,
// stairs at this level, place. An unreachable task stays pending; another
// worker or a later tick may still serve it.
func (w *Worker) trySearchTask(g Grid, q *Queue, f *path.Finder, p Params) bool {
	from := w.Cell()
	w.Diag.Searches++

	found := false
	if t := q.FindNearestDig(from); t != nil {
		found = true
		if w.claimWithRoute(q, t, f.Find(g, from, t.Pos), p) {
			return true
		}
	}
	if t := q.FindNearestStairsAtLevel(from, from.Y); t != nil {
		found = true
		if w.claimWithRoute(q, t, f.FindToStairs(g, from, t.Pos), p) {
			return true
		}
	}
	if t := q.FindNearestPlace(from); t != nil {
		found = true
		if w.claimWithRoute(q, t, f.Find(g, from, t.Pos), p) {
			return true
		}
	}
	if found {
		w.Diag.PathFails++
		w.Diag.LastReason = ReasonNoPath
	} else {
		w.Diag.LastReason = ReasonNoTasks
	}
	return false
}

func (w *Worker) claimWithRoute(q *Queue, t *Task, route []world.Vec3i, p Params) bool {
	if route == nil {
		return false
	}
	if !q.Claim(t.ID, w.ID) {
		return false
	}
	w.TaskID = t.ID
	w.Diag.Claims++
	if len(route) == 0 {
		// Already adjacent; skip straight to working.
		w.State = StateWorking
		w.workTimer = p.WorkSeconds
		return true
	}
	w.route = route
	w.routeIdx = 0
	w.State = StateMoving
	return true
}

func (w *Worker) tryWander(g Grid, f *path.Finder, p Params) {
	from := w.Cell()
	for i := 0; i < p.WanderAttempts; i++ {
		r := p.WanderRadiusMin
		if span := p.WanderRadiusMax - p.WanderRadiusMin; span > 0 {
			r += w.rng.Intn(span + 1)
		}
		dest := world.Vec3i{
			X: from.X + w.rng.Intn(2*r+1) - r,
			Y: from.Y,
			Z: from.Z + w.rng.Intn(2*r+1) - r,
		}
		if dest == from || !path.Walkable(g, dest) {
			continue
		}
		route := f.Find(g, from, dest)
		if route == nil || len(route) == 0 {
			continue
		}
		w.route = route
		w.routeIdx = 0
		w.State = StateMoving
		w.Diag.Wanders++
		return
	}
	w.Diag.LastReason = ReasonWanderBlocked
	w.resetWanderWait(p)
}

func (w *Worker) updateMoving(dt float64, p Params) {
	if w.routeIdx >= len(w.route) {
		w.arrive(p)
		return
	}
	node := w.route[w.routeIdx]
	dx := float64(node.X) - w.X
	dy := float64(node.Y) - w.Y
	dz := float64(node.Z) - w.Z
	dist := math.Sqrt(dx*dx + dy*dy + dz*dz)
	step := p.MoveSpeed * dt
	if dist <= step || dist < arriveEpsilon {
		// Snap exactly onto the node so drift never accumulates.
		w.X = float64(node.X)
		w.Y = float64(node.Y)
		w.Z = float64(node.Z)
		w.routeIdx++
		if w.routeIdx >= len(w.route) {
			w.arrive(p)
		}
		return
	}
	w.X += dx / dist * step
	w.Y += dy / dist * step
	w.Z += dz / dist * step
}

func (w *Worker) arrive(p Params) {
	w.route = nil
	w.routeIdx = 0
	if w.TaskID != 0 {
		w.State = StateWorking
		w.workTimer = p.WorkSeconds
		return
	}
	w.State = StateIdle
	w.resetWanderWait(p)
}

func (w *Worker) updateWorking(dt float64, g Grid, q *Queue, c *Crew) {
	w.workTimer -= dt
	if w.workTimer > 0 {
		return
	}
	if t := q.Get(w.TaskID); t != nil {
		to := world.Air
		switch t.Kind {
		case KindPlace:
			to = t.Material
		case KindStairs:
			to = world.Stairs
		}
		from := g.GetBlock(t.Pos)
		g.SetBlock(t.Pos, to)
		if c.Audit != nil {
			c.Audit(w.ID, t, from, to)
		}
		q.Complete(t.ID)
		w.Diag.Completed++
	}
	w.TaskID = 0
	w.State = StateIdle
	w.idleTimer = c.params.IdlePauseSeconds
}

// ReleaseTask hands a claimed task back to the queue and forces the worker
// idle. This is the only way a task returns to PENDING outside completion.
func (w *Worker) ReleaseTask(q *Queue) {
	if w.TaskID != 0 {
		q.Release(w.TaskID)
		w.TaskID = 0
	}
	w.route = nil
	w.routeIdx = 0
	w.State = StateIdle
	w.idleTimer = 0
}

func (w *Worker) resetWanderWait(p Params) {
	w.wanderWait = p.WanderWaitMin + w.rng.Float64()*(p.WanderWaitMax-p.WanderWaitMin)
}
