package path

import (
	"sort"

	"voxelcolony/internal/sim/world"
)

// Grid is the read surface the pathfinder needs from the voxel store.
type Grid interface {
	InBounds(world.Vec3i) bool
	IsSolid(world.Vec3i) bool
	IsStair(world.Vec3i) bool
}

// DefaultMaxExpansions bounds worst-case per-tick search cost. Hitting the cap
// is reported as "no path", same as an exhausted frontier.
const DefaultMaxExpansions = 10000

// Finder runs A* over the voxel grid. It keeps no search state between calls
// beyond reusable arenas, so one instance is shared by all workers as long as
// calls stay serial.
type Finder struct {
	MaxExpansions int

	nodes   []node
	open    []int32
	visited map[world.Vec3i]int32
}

type node struct {
	pos    world.Vec3i
	g      int32
	h      int32
	parent int32
	closed bool
}

func NewFinder() *Finder {
	return &Finder{
		MaxExpansions: DefaultMaxExpansions,
		visited:       map[world.Vec3i]int32{},
	}
}

// Walkable reports whether an agent can occupy cell c: inside the world,
// standing on a solid cell, and not inside a solid block (stairs count as
// open space).
func Walkable(g Grid, c world.Vec3i) bool {
	if !g.InBounds(c) {
		return false
	}
	if !g.IsSolid(world.Vec3i{X: c.X, Y: c.Y - 1, Z: c.Z}) {
		return false
	}
	return !g.IsSolid(c) || g.IsStair(c)
}

var cardinal = [4]world.Vec3i{{X: 1}, {X: -1}, {Z: 1}, {Z: -1}}

// neighborBuf is sized for the full candidate set; unused slots stay untouched.
type neighborBuf [18]world.Vec3i

// neighbors fills buf with the legal moves out of cur: 4 same-level steps,
// 4 step-ups (which also need head room above the current cell), 4 step-downs.
func neighbors(g Grid, cur world.Vec3i, buf *neighborBuf) int {
	n := 0
	headFree := !g.IsSolid(world.Vec3i{X: cur.X, Y: cur.Y + 1, Z: cur.Z})
	for _, d := range cardinal {
		same := world.Vec3i{X: cur.X + d.X, Y: cur.Y, Z: cur.Z + d.Z}
		if Walkable(g, same) {
			buf[n] = same
			n++
		}
		if headFree {
			up := world.Vec3i{X: same.X, Y: same.Y + 1, Z: same.Z}
			if Walkable(g, up) {
				buf[n] = up
				n++
			}
		}
		down := world.Vec3i{X: same.X, Y: same.Y - 1, Z: same.Z}
		if Walkable(g, down) {
			buf[n] = down
			n++
		}
	}
	return n
}

// Find returns the route from start (exclusive) to goal, accepting any end
// cell within Chebyshev distance 1 of goal. It returns nil when no route was
// found within the expansion budget; an empty non-nil path means start already
// satisfies the goal.
func (f *Finder) Find(g Grid, start, goal world.Vec3i) []world.Vec3i {
	if world.Chebyshev(start, goal) <= 1 {
		return []world.Vec3i{}
	}

	maxExp := f.MaxExpansions
	if maxExp <= 0 {
		maxExp = DefaultMaxExpansions
	}

	f.nodes = f.nodes[:0]
	f.open = f.open[:0]
	clear(f.visited)

	f.addNode(start, 0, int32(world.Manhattan(start, goal)), -1)

	var buf neighborBuf
	expansions := 0
	for len(f.open) > 0 {
		idx := f.popOpen()
		n := &f.nodes[idx]
		if n.closed {
			continue // stale heap entry
		}
		n.closed = true

		if world.Chebyshev(n.pos, goal) <= 1 {
			return f.reconstruct(idx)
		}

		expansions++
		if expansions >= maxExp {
			return nil
		}

		cnt := neighbors(g, n.pos, &buf)
		ng := n.g + 1
		for i := 0; i < cnt; i++ {
			np := buf[i]
			if j, ok := f.visited[np]; ok {
				if f.nodes[j].closed || f.nodes[j].g <= ng {
					continue
				}
				f.nodes[j].g = ng
				f.nodes[j].parent = idx
				f.pushOpen(j)
				continue
			}
			f.addNode(np, ng, int32(world.Manhattan(np, goal)), idx)
		}
	}
	return nil
}

// FindToStairs routes toward a stairs work site. The worker may end up on any
// walkable cell in the 3x3 footprint around the target, at the target level or
// up to two above it; candidates are tried nearest-first.
func (f *Finder) FindToStairs(g Grid, start, target world.Vec3i) []world.Vec3i {
	cands := make([]world.Vec3i, 0, 27)
	for dy := 0; dy <= 2; dy++ {
		for dz := -1; dz <= 1; dz++ {
			for dx := -1; dx <= 1; dx++ {
				c := world.Vec3i{X: target.X + dx, Y: target.Y + dy, Z: target.Z + dz}
				if Walkable(g, c) {
					cands = append(cands, c)
				}
			}
		}
	}
	sort.Slice(cands, func(i, j int) bool {
		di := world.DistSq(cands[i], target)
		dj := world.DistSq(cands[j], target)
		if di != dj {
			return di < dj
		}
		if cands[i].Y != cands[j].Y {
			return cands[i].Y < cands[j].Y
		}
		if cands[i].X != cands[j].X {
			return cands[i].X < cands[j].X
		}
		return cands[i].Z < cands[j].Z
	})
	for _, c := range cands {
		if p := f.Find(g, start, c); p != nil {
			return p
		}
	}
	return nil
}

func (f *Finder) addNode(pos world.Vec3i, g, h, parent int32) {
	idx := int32(len(f.nodes))
	f.nodes = append(f.nodes, node{pos: pos, g: g, h: h, parent: parent})
	f.visited[pos] = idx
	f.pushOpen(idx)
}

func (f *Finder) reconstruct(idx int32) []world.Vec3i {
	n := 0
	for i := idx; f.nodes[i].parent >= 0; i = f.nodes[i].parent {
		n++
	}
	out := make([]world.Vec3i, n)
	for i := idx; f.nodes[i].parent >= 0; i = f.nodes[i].parent {
		n--
		out[n] = f.nodes[i].pos
	}
	return out
}

// Open-set ordering: lowest f first, ties broken toward lower h so equal-cost
// frontiers drain goal-side first and path shape stays stable.
func (f *Finder) less(a, b int32) bool {
	na, nb := &f.nodes[a], &f.nodes[b]
	fa, fb := na.g+na.h, nb.g+nb.h
	if fa != fb {
		return fa < fb
	}
	return na.h < nb.h
}

func (f *Finder) pushOpen(idx int32) {
	f.open = append(f.open, idx)
	i := len(f.open) - 1
	for i > 0 {
		p := (i - 1) / 2
		if !f.less(f.open[i], f.open[p]) {
			break
		}
		f.open[i], f.open[p] = f.open[p], f.open[i]
		i = p
	}
}

func (f *Finder) popOpen() int32 {
	top := f.open[0]
	last := len(f.open) - 1
	f.open[0] = f.open[last]
	f.open = f.open[:last]
	i := 0
	for {
		l := 2*i + 1
		if l >= len(f.open) {
			break
		}
		c := l
		if r := l + 1; r < len(f.open) && f.less(f.open[r], f.open[l]) {
			c = r
		}
		if !f.less(f.open[c], f.open[i]) {
			break
		}
		f.open[i], f.open[c] = f.open[c], f.open[i]
		i = c
	}
	return top
}
