// Package chunkedit inspects block entities inside decoded chunk NBT.
// Archive-backed worlds cannot be written, so only read accessors exist.
package chunkedit

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func getArray(chunk map[string]any, keys ...string) ([]any, string) {
	for _, k := range keys {
		if v, ok := chunk[k]; ok {
			if arr, ok := v.([]any); ok {
				return arr, k
			}
		}
	}
	return nil, ""
}

func intsEqual(a any, b int) bool {
	switch t := a.(type) {
	case int8:
		return int(t) == b
	case int16:
		return int(t) == b
	case int32:
		return int(t) == b
	case int64:
		return int(t) == b
	case int:
		return t == b
	case float64:
		return int(t) == b
	default:
		return false
	}
}

func findBlockEntity(chunk map[string]any, x, y, z int) map[string]any {
	arr, _ := getArray(chunk, "block_entities", "BlockEntities", "TileEntities")
	for _, v := range arr {
		m, ok := asMap(v)
		if !ok {
			continue
		}
		xv, xok := m["x"]
		yv, yok := m["y"]
		zv, zok := m["z"]
		if xok && yok && zok && intsEqual(xv, x) && intsEqual(yv, y) && intsEqual(zv, z) {
			return m
		}
	}
	return nil
}

func GetBlockEntity(chunk map[string]any, x, y, z int) (map[string]any, bool) {
	ent := findBlockEntity(chunk, x, y, z)
	if ent == nil {
		return nil, false
	}
	return ent, true
}

// ListBlockEntities returns every block entity stored in the chunk, under
// whichever of the historical tag names the chunk uses.
func ListBlockEntities(chunk map[string]any) []map[string]any {
	arr, _ := getArray(chunk, "block_entities", "BlockEntities", "TileEntities")
	var out []map[string]any
	for _, v := range arr {
		if m, ok := asMap(v); ok {
			out = append(out, m)
		}
	}
	return out
}
