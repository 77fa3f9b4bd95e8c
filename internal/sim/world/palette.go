package world

// Block palette ids. Fixed at compile time; the observer bootstrap exposes the
// names so a HUD can label voxels without sharing these constants.
const (
	Air uint16 = iota
	Grass
	Dirt
	Stone
	Sand
	Gravel
	Log
	CoalOre
	IronOre
	Stairs
)

var blockNames = []string{
	"AIR",
	"GRASS",
	"DIRT",
	"STONE",
	"SAND",
	"GRAVEL",
	"LOG",
	"COAL_ORE",
	"IRON_ORE",
	"STAIRS",
}

func BlockPalette() []string {
	out := make([]string, len(blockNames))
	copy(out, blockNames)
	return out
}

func BlockName(id uint16) string {
	if int(id) < len(blockNames) {
		return blockNames[id]
	}
	return "UNKNOWN"
}

// BlockIDByName resolves a palette name to its id. The second result is false
// for unknown names.
func BlockIDByName(name string) (uint16, bool) {
	for i, n := range blockNames {
		if n == name {
			return uint16(i), true
		}
	}
	return 0, false
}

// BlockSolid reports whether a block id blocks movement. Air is passable and
// stairs are climb-through, everything else is solid.
func BlockSolid(id uint16) bool {
	return id != Air && id != Stairs
}
