package coords

import (
	"fmt"
	"strconv"
	"strings"
)

func FloorDiv(a, b int) int {
	q := a / b
	r := a % b
	if (r != 0) && ((r > 0) != (b > 0)) {
		q--
	}
	return q
}

func FloorMod(a, b int) int {
	r := a % b
	if r < 0 {
		r += b
	}
	return r
}

func WorldToChunkXZ(x, z int) (int, int) {
	return FloorDiv(x, 16), FloorDiv(z, 16)
}

// ChunkToRegionXZ maps chunk coordinates to the coordinates of the region
// containing them. Floor division keeps negative chunks in the right region:
// chunk -1 belongs to region -1, not region 0.
func ChunkToRegionXZ(cx, cz int) (int, int) {
	return FloorDiv(cx, 32), FloorDiv(cz, 32)
}

// InRegionChunkIndex returns the chunk's offset within its region, always in
// [0, 32) on both axes.
func InRegionChunkIndex(cx, cz int) (int, int) {
	return FloorMod(cx, 32), FloorMod(cz, 32)
}

func RegionFileName(rx, rz int) string {
	return fmt.Sprintf("r.%d.%d.mca", rx, rz)
}

// ParseRegionFileName extracts region coordinates from a file name of the
// form r.<x>.<z>.mca. Reports false for anything else.
func ParseRegionFileName(name string) (rx, rz int, ok bool) {
	parts := strings.Split(name, ".")
	if len(parts) != 4 || parts[0] != "r" || parts[3] != "mca" {
		return 0, 0, false
	}
	rx, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	rz, err = strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, false
	}
	return rx, rz, true
}
