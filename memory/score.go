package memory

// Composite retrieval score weights. Importance dominates, semantic
// relevance second, then recency and retrieval frequency.
const (
	weightImportance = 0.4
	weightRecency    = 0.2
	weightAccess     = 0.1
	weightRelevance  = 0.3
)

// A memory with importance I survives roughly I*100 game days before it
// stops surfacing. Core memories never decay.
const decayHorizonDays = 100.0

func recencyFactor(ageDays int64) float64 {
	r := 1.0 - 0.01*float64(ageDays)
	if r < 0.1 {
		r = 0.1
	}
	return r
}

func accessFactor(count int64) float64 {
	f := 0.5 + 0.05*float64(count)
	if f > 1.0 {
		f = 1.0
	}
	return f
}

// Decayed reports whether the memory has outlived its importance horizon
// as of currentDay.
func (m *Memory) Decayed(currentDay int64) bool {
	if m.Core {
		return false
	}
	return float64(currentDay-m.CreatedDay) > m.Importance*decayHorizonDays
}

// scoreMemory computes the composite retrieval score. Core memories rank
// near the top regardless of age, ordered among themselves by relevance.
func scoreMemory(m *Memory, relevance float64, currentDay int64) float64 {
	if m.Core {
		return 0.9 + 0.1*relevance
	}
	return m.Importance*weightImportance +
		recencyFactor(currentDay-m.CreatedDay)*weightRecency +
		accessFactor(m.AccessCount)*weightAccess +
		relevance*weightRelevance
}
