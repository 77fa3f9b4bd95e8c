package colony

import (
	"testing"

	"voxelcolony/internal/sim/world"
)

// testGrid is a bounded grid with a solid floor at y=0, explicit overrides,
// and mutation through SetBlock like the real chunk store.
type testGrid struct {
	size   int
	height int
	blocks map[world.Vec3i]uint16
}

func newTestGrid(size, height int) *testGrid {
	return &testGrid{size: size, height: height, blocks: map[world.Vec3i]uint16{}}
}

func (g *testGrid) InBounds(p world.Vec3i) bool {
	return p.X >= 0 && p.X < g.size && p.Z >= 0 && p.Z < g.size && p.Y >= 0 && p.Y < g.height
}

func (g *testGrid) GetBlock(p world.Vec3i) uint16 {
	if !g.InBounds(p) {
		return world.Air
	}
	if b, ok := g.blocks[p]; ok {
		return b
	}
	if p.Y == 0 {
		return world.Stone
	}
	return world.Air
}

func (g *testGrid) SetBlock(p world.Vec3i, b uint16) {
	if g.InBounds(p) {
		g.blocks[p] = b
	}
}

func (g *testGrid) IsSolid(p world.Vec3i) bool {
	return g.InBounds(p) && world.BlockSolid(g.GetBlock(p))
}

func (g *testGrid) IsStair(p world.Vec3i) bool {
	return g.InBounds(p) && g.GetBlock(p) == world.Stairs
}

const tickDt = 0.05 // 20 Hz

func runTicks(c *Crew, g Grid, q *Queue, n int) {
	for i := 0; i < n; i++ {
		c.UpdateAll(tickDt, g, q)
	}
}

func TestScenario_FlatPlatformDig(t *testing.T) {
	g := newTestGrid(16, 8)
	q := NewQueue()
	c := NewCrew(Params{})
	c.Spawn(0, 1, 0)

	target := world.Vec3i{X: 3, Y: 1, Z: 3}
	g.SetBlock(target, world.Stone)
	id := q.Add(target, KindDig)

	runTicks(c, g, q, 400) // 20 simulated seconds

	if got := g.GetBlock(target); got != world.Air {
		t.Fatalf("block at %v = %d, want Air after dig", target, got)
	}
	if q.Get(id) != nil {
		t.Fatalf("completed task %d survived cleanup", id)
	}
	if q.ActiveCount() != 0 {
		t.Fatalf("queue still has %d active tasks", q.ActiveCount())
	}
}

func TestScenario_BlockedTaskStaysPending(t *testing.T) {
	g := newTestGrid(16, 8)
	q := NewQueue()
	c := NewCrew(Params{})
	c.Spawn(0, 1, 0)

	// Dig target sealed inside a solid cube; no adjacent cell is walkable.
	target := world.Vec3i{X: 8, Y: 2, Z: 8}
	for y := 1; y <= 3; y++ {
		for dz := -1; dz <= 1; dz++ {
			for dx := -1; dx <= 1; dx++ {
				g.SetBlock(world.Vec3i{X: target.X + dx, Y: y, Z: target.Z + dz}, world.Stone)
			}
		}
	}
	id := q.Add(target, KindDig)

	runTicks(c, g, q, 200)

	task := q.Get(id)
	if task == nil {
		t.Fatalf("unreachable task was dropped")
	}
	if task.Status != StatusPending {
		t.Fatalf("unreachable task status = %s, want PENDING", task.Status)
	}
	w := c.Get(1)
	if w.Diag.PathFails == 0 {
		t.Fatalf("worker diag = %+v, expected recorded path failures", w.Diag)
	}
}

func TestScenario_StairsTaskPlacesStairBlock(t *testing.T) {
	g := newTestGrid(16, 8)
	q := NewQueue()
	c := NewCrew(Params{})
	c.Spawn(0, 1, 0)

	site := world.Vec3i{X: 5, Y: 1, Z: 5}
	id := q.AddStairs(site)

	runTicks(c, g, q, 400)

	if got := g.GetBlock(site); got != world.Stairs {
		t.Fatalf("block at %v = %d, want Stairs", site, got)
	}
	if q.Get(id) != nil {
		t.Fatalf("stairs task %d not cleaned up", id)
	}
}

func TestScenario_PlaceTaskWritesMaterial(t *testing.T) {
	g := newTestGrid(16, 8)
	q := NewQueue()
	c := NewCrew(Params{})
	c.Spawn(0, 1, 0)

	site := world.Vec3i{X: 4, Y: 1, Z: 2}
	q.AddPlace(site, world.Log)

	runTicks(c, g, q, 400)

	if got := g.GetBlock(site); got != world.Log {
		t.Fatalf("block at %v = %d, want Log", site, got)
	}
}

func TestWorker_AdjacentTaskSkipsStraightToWorking(t *testing.T) {
	g := newTestGrid(16, 8)
	q := NewQueue()
	c := NewCrew(Params{})
	w := c.Spawn(2, 1, 3)

	target := world.Vec3i{X: 3, Y: 1, Z: 3}
	g.SetBlock(target, world.Stone)
	id := q.Add(target, KindDig)

	c.UpdateAll(tickDt, g, q)

	if w.State != StateWorking {
		t.Fatalf("state = %s, want WORKING with a zero-length route", w.State)
	}
	if w.TaskID != id {
		t.Fatalf("TaskID = %d want %d", w.TaskID, id)
	}
	if q.Get(id).AssignedWorker != w.ID {
		t.Fatalf("task not assigned to worker %d: %+v", w.ID, q.Get(id))
	}
}

func TestWorker_DigPriorityOverCloserPlace(t *testing.T) {
	g := newTestGrid(24, 8)
	q := NewQueue()
	c := NewCrew(Params{})
	w := c.Spawn(0, 1, 0)

	q.AddPlace(world.Vec3i{X: 2, Y: 1, Z: 0}, world.Stone)
	digPos := world.Vec3i{X: 12, Y: 1, Z: 0}
	g.SetBlock(digPos, world.Stone)
	digID := q.Add(digPos, KindDig)

	c.UpdateAll(tickDt, g, q)

	if w.TaskID != digID {
		t.Fatalf("worker claimed task %d, want dig task %d despite a closer place task", w.TaskID, digID)
	}
}

func TestWorker_ReleaseTaskForcesIdleAndRequeues(t *testing.T) {
	g := newTestGrid(16, 8)
	q := NewQueue()
	c := NewCrew(Params{})
	w := c.Spawn(0, 1, 0)

	target := world.Vec3i{X: 8, Y: 1, Z: 8}
	g.SetBlock(target, world.Stone)
	id := q.Add(target, KindDig)

	c.UpdateAll(tickDt, g, q)
	if w.State != StateMoving || w.TaskID != id {
		t.Fatalf("precondition: worker should be moving toward the task, state=%s task=%d", w.State, w.TaskID)
	}

	w.ReleaseTask(q)

	if w.State != StateIdle || w.TaskID != 0 || w.RouteRemaining() != 0 {
		t.Fatalf("after release: state=%s task=%d route=%d", w.State, w.TaskID, w.RouteRemaining())
	}
	task := q.Get(id)
	if task.Status != StatusPending || task.AssignedWorker != 0 {
		t.Fatalf("released task not requeued: %+v", task)
	}
}

func TestWorker_ClaimExclusivityAcrossTicks(t *testing.T) {
	g := newTestGrid(16, 8)
	q := NewQueue()
	c := NewCrew(Params{})
	c.Spawn(0, 1, 0)
	c.Spawn(0, 1, 2)

	target := world.Vec3i{X: 8, Y: 1, Z: 4}
	g.SetBlock(target, world.Stone)
	id := q.Add(target, KindDig)

	var owner uint64
	for i := 0; i < 400; i++ {
		c.UpdateAll(tickDt, g, q)
		task := q.Get(id)
		if task == nil {
			break // completed and cleaned up
		}
		if task.Status == StatusInProgress {
			if owner == 0 {
				owner = task.AssignedWorker
			}
			if task.AssignedWorker != owner {
				t.Fatalf("task changed hands without a release: %d -> %d", owner, task.AssignedWorker)
			}
		}
	}
	if owner == 0 {
		t.Fatalf("task was never claimed")
	}
	if g.GetBlock(target) != world.Air {
		t.Fatalf("task never completed")
	}
	// Exactly one worker did the work.
	w1, w2 := c.Get(1), c.Get(2)
	if w1.Diag.Completed+w2.Diag.Completed != 1 {
		t.Fatalf("completions = %d + %d, want exactly 1", w1.Diag.Completed, w2.Diag.Completed)
	}
}

func TestWorker_WandersWhenIdle(t *testing.T) {
	g := newTestGrid(16, 8)
	q := NewQueue()
	c := NewCrew(Params{})
	w := c.Spawn(8, 1, 8)

	runTicks(c, g, q, 600) // 30 simulated seconds, no tasks designated

	if w.Diag.Wanders == 0 {
		t.Fatalf("worker never wandered: %+v", w.Diag)
	}
	if w.TaskID != 0 {
		t.Fatalf("wandering must not claim a task id")
	}
	if w.Diag.Claims != 0 {
		t.Fatalf("no tasks existed, but claims = %d", w.Diag.Claims)
	}
}

func TestWorker_PathAndClaimInvariants(t *testing.T) {
	g := newTestGrid(16, 8)
	q := NewQueue()
	c := NewCrew(Params{})
	w := c.Spawn(0, 1, 0)

	target := world.Vec3i{X: 9, Y: 1, Z: 9}
	g.SetBlock(target, world.Stone)
	q.Add(target, KindDig)

	for i := 0; i < 400; i++ {
		c.UpdateAll(tickDt, g, q)
		if (w.RouteRemaining() > 0) != (w.State == StateMoving && w.route != nil) {
			t.Fatalf("tick %d: route held outside MOVING (state=%s)", i, w.State)
		}
		if w.State == StateIdle && w.TaskID != 0 {
			t.Fatalf("tick %d: idle worker still holds task %d", i, w.TaskID)
		}
		if w.TaskID != 0 {
			task := q.Get(w.TaskID)
			if task == nil || task.AssignedWorker != w.ID {
				t.Fatalf("tick %d: claim not reflected in queue: %+v", i, task)
			}
		}
	}
}

func TestCrew_SpawnAssignsMonotonicIDs(t *testing.T) {
	c := NewCrew(Params{})
	a := c.Spawn(0, 1, 0)
	b := c.Spawn(1, 1, 0)
	if a.ID != 1 || b.ID != 2 {
		t.Fatalf("ids = %d, %d want 1, 2", a.ID, b.ID)
	}
	if c.Get(2) != b || c.Get(99) != nil {
		t.Fatalf("Get lookup broken")
	}
	if len(c.Workers()) != 2 {
		t.Fatalf("Workers() = %d entries", len(c.Workers()))
	}
}

func TestCrew_AuditHookSeesBlockMutation(t *testing.T) {
	g := newTestGrid(16, 8)
	q := NewQueue()
	c := NewCrew(Params{})
	c.Spawn(2, 1, 3)

	type mutation struct {
		worker   uint64
		pos      world.Vec3i
		from, to uint16
	}
	var muts []mutation
	c.Audit = func(workerID uint64, task *Task, from, to uint16) {
		muts = append(muts, mutation{worker: workerID, pos: task.Pos, from: from, to: to})
	}

	target := world.Vec3i{X: 3, Y: 1, Z: 3}
	g.SetBlock(target, world.Stone)
	q.Add(target, KindDig)

	runTicks(c, g, q, 100)

	if len(muts) != 1 {
		t.Fatalf("audit hook fired %d times, want 1", len(muts))
	}
	m := muts[0]
	if m.worker != 1 || m.pos != target || m.from != world.Stone || m.to != world.Air {
		t.Fatalf("audit entry = %+v", m)
	}
}
