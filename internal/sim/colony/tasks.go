package colony

import "voxelcolony/internal/sim/world"

type TaskKind string

const (
	KindDig    TaskKind = "DIG"
	KindPlace  TaskKind = "PLACE"
	KindStairs TaskKind = "STAIRS"
)

type TaskStatus string

const (
	StatusPending    TaskStatus = "PENDING"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusCompleted  TaskStatus = "COMPLETED"
)

// Task is one player-designated unit of work. AssignedWorker is non-zero only
// while Status is IN_PROGRESS, and at most one worker holds a task at a time.
type Task struct {
	ID             uint64
	Pos            world.Vec3i
	Kind           TaskKind
	Material       uint16 // PLACE/STAIRS payload
	Status         TaskStatus
	AssignedWorker uint64
}

// Queue is the ordered collection of designations. A linear scan with
// insertion-order tie-break is deliberate: at the task counts this game runs
// (thousands at most) a spatial index buys nothing.
type Queue struct {
	tasks  []*Task
	byID   map[uint64]*Task
	nextID uint64
}

func NewQueue() *Queue {
	return &Queue{byID: map[uint64]*Task{}}
}

// Add inserts a pending task, or returns the id of an existing pending or
// in-progress task at the same position and kind (idempotent designation).
func (q *Queue) Add(pos world.Vec3i, kind TaskKind) uint64 {
	return q.add(pos, kind, 0)
}

// AddPlace designates placing material at pos. Dedup intentionally ignores
// the material: re-designating a cell with a different block keeps the first
// designation.
func (q *Queue) AddPlace(pos world.Vec3i, material uint16) uint64 {
	return q.add(pos, KindPlace, material)
}

func (q *Queue) AddStairs(pos world.Vec3i) uint64 {
	return q.add(pos, KindStairs, world.Stairs)
}

func (q *Queue) add(pos world.Vec3i, kind TaskKind, material uint16) uint64 {
	for _, t := range q.tasks {
		if t.Pos == pos && t.Kind == kind && t.Status != StatusCompleted {
			return t.ID
		}
	}
	q.nextID++
	t := &Task{ID: q.nextID, Pos: pos, Kind: kind, Material: material, Status: StatusPending}
	q.tasks = append(q.tasks, t)
	q.byID[t.ID] = t
	return t.ID
}

// Remove drops a task by id; no-op when absent.
func (q *Queue) Remove(id uint64) {
	if _, ok := q.byID[id]; !ok {
		return
	}
	delete(q.byID, id)
	for i, t := range q.tasks {
		if t.ID == id {
			q.tasks = append(q.tasks[:i], q.tasks[i+1:]...)
			return
		}
	}
}

func (q *Queue) Get(id uint64) *Task {
	return q.byID[id]
}

// Claim moves a pending task to IN_PROGRESS for one worker. Returns false if
// the task is missing or already claimed.
func (q *Queue) Claim(id, workerID uint64) bool {
	t := q.byID[id]
	if t == nil || t.Status != StatusPending {
		return false
	}
	t.Status = StatusInProgress
	t.AssignedWorker = workerID
	return true
}

// Release returns an in-progress task to circulation.
func (q *Queue) Release(id uint64) {
	t := q.byID[id]
	if t == nil || t.Status != StatusInProgress {
		return
	}
	t.Status = StatusPending
	t.AssignedWorker = 0
}

// Complete finishes an in-progress task; it stays in the queue until the next
// CleanupCompleted pass.
func (q *Queue) Complete(id uint64) {
	t := q.byID[id]
	if t == nil {
		return
	}
	t.Status = StatusCompleted
	t.AssignedWorker = 0
}

func (q *Queue) FindNearestPending(from world.Vec3i) *Task {
	return q.nearest(from, func(t *Task) bool { return true })
}

func (q *Queue) FindNearestDig(from world.Vec3i) *Task {
	return q.nearest(from, func(t *Task) bool { return t.Kind == KindDig })
}

func (q *Queue) FindNearestPlace(from world.Vec3i) *Task {
	return q.nearest(from, func(t *Task) bool { return t.Kind == KindPlace })
}

// FindNearestStairsAtLevel returns the nearest pending stairs task whose y sits
// in the band a worker at level y can actually serve: the level itself, one or
// two below (climbing), or one above (descending).
func (q *Queue) FindNearestStairsAtLevel(from world.Vec3i, y int) *Task {
	return q.nearest(from, func(t *Task) bool {
		if t.Kind != KindStairs {
			return false
		}
		dy := y - t.Pos.Y
		return dy >= -1 && dy <= 2
	})
}

func (q *Queue) nearest(from world.Vec3i, match func(*Task) bool) *Task {
	var best *Task
	bestD := 0
	for _, t := range q.tasks {
		if t.Status != StatusPending || !match(t) {
			continue
		}
		d := world.DistSq(from, t.Pos)
		if best == nil || d < bestD {
			best = t
			bestD = d
		}
	}
	return best
}

// CleanupCompleted removes every completed task. Runs once per crew tick so
// task ids stay resolvable for the whole of a tick; calling it again with
// nothing completed is a no-op.
func (q *Queue) CleanupCompleted() {
	kept := q.tasks[:0]
	for _, t := range q.tasks {
		if t.Status == StatusCompleted {
			delete(q.byID, t.ID)
			continue
		}
		kept = append(kept, t)
	}
	q.tasks = kept
}

func (q *Queue) PendingCount() int {
	return q.countStatus(StatusPending)
}

func (q *Queue) InProgressCount() int {
	return q.countStatus(StatusInProgress)
}

// ActiveCount is pending plus in-progress.
func (q *Queue) ActiveCount() int {
	return q.countStatus(StatusPending) + q.countStatus(StatusInProgress)
}

func (q *Queue) countStatus(st TaskStatus) int {
	n := 0
	for _, t := range q.tasks {
		if t.Status == st {
			n++
		}
	}
	return n
}

// Tasks returns the live designations in insertion order, for the HUD.
func (q *Queue) Tasks() []*Task {
	out := make([]*Task, len(q.tasks))
	copy(out, q.tasks)
	return out
}
