package world

type Vec3i struct {
	X int
	Y int
	Z int
}

func (v Vec3i) ToArray() [3]int { return [3]int{v.X, v.Y, v.Z} }

func Manhattan(a, b Vec3i) int {
	return absInt(a.X-b.X) + absInt(a.Y-b.Y) + absInt(a.Z-b.Z)
}

// Chebyshev is the king-move distance; cells at Chebyshev distance 1 touch
// on a face, edge or corner.
func Chebyshev(a, b Vec3i) int {
	d := absInt(a.X - b.X)
	if dy := absInt(a.Y - b.Y); dy > d {
		d = dy
	}
	if dz := absInt(a.Z - b.Z); dz > d {
		d = dz
	}
	return d
}

// DistSq is the squared Euclidean distance between cell coordinates.
func DistSq(a, b Vec3i) int {
	dx := a.X - b.X
	dy := a.Y - b.Y
	dz := a.Z - b.Z
	return dx*dx + dy*dy + dz*dz
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
