package domain

// MemoryImportance classifies a memory. Distinct from SnapshotImportance;
// the two value sets overlap but are not interchangeable.
type MemoryImportance string

const (
	MemoryImportanceCritical MemoryImportance = "critical"
	MemoryImportanceHigh     MemoryImportance = "high"
	MemoryImportanceNormal   MemoryImportance = "normal"
	MemoryImportanceLow      MemoryImportance = "low"
)

var validMemoryImportance = map[MemoryImportance]bool{
	MemoryImportanceCritical: true,
	MemoryImportanceHigh:     true,
	MemoryImportanceNormal:   true,
	MemoryImportanceLow:      true,
}

// NormalizeMemoryImportance maps a raw client-supplied importance to the
// canonical enum. Valid strings pass through unchanged. Numbers are bucketed
// on a 0-10 scale (legacy clients score importance instead of naming it):
// >=8 critical, >=5 high, >=3 normal, else low. Anything else degrades to
// normal; malformed importance never rejects a write.
func NormalizeMemoryImportance(raw any) MemoryImportance {
	switch v := raw.(type) {
	case string:
		if imp := MemoryImportance(v); validMemoryImportance[imp] {
			return imp
		}
		return MemoryImportanceNormal
	case float64:
		return bucketMemoryImportance(v)
	case int:
		return bucketMemoryImportance(float64(v))
	default:
		return MemoryImportanceNormal
	}
}

func bucketMemoryImportance(n float64) MemoryImportance {
	switch {
	case n >= 8:
		return MemoryImportanceCritical
	case n >= 5:
		return MemoryImportanceHigh
	case n >= 3:
		return MemoryImportanceNormal
	default:
		return MemoryImportanceLow
	}
}

// SnapshotImportance classifies a snapshot. Uses a different value set than
// MemoryImportance ("important"/"reference" instead of "high"/"low").
type SnapshotImportance string

const (
	SnapshotImportanceCritical  SnapshotImportance = "critical"
	SnapshotImportanceImportant SnapshotImportance = "important"
	SnapshotImportanceNormal    SnapshotImportance = "normal"
	SnapshotImportanceReference SnapshotImportance = "reference"
)

var validSnapshotImportance = map[SnapshotImportance]bool{
	SnapshotImportanceCritical:  true,
	SnapshotImportanceImportant: true,
	SnapshotImportanceNormal:    true,
	SnapshotImportanceReference: true,
}

// NormalizeSnapshotImportance maps a raw client-supplied importance to the
// snapshot enum: a plain membership test, defaulting to normal on any miss.
// No numeric bucketing here; snapshot clients have never sent scores.
func NormalizeSnapshotImportance(raw any) SnapshotImportance {
	if s, ok := raw.(string); ok {
		if imp := SnapshotImportance(s); validSnapshotImportance[imp] {
			return imp
		}
	}
	return SnapshotImportanceNormal
}
