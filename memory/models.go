package memory

import (
	"context"
	"time"
)

// MemoryType describes the tier a memory belongs to.
type MemoryType string

const (
	// TypeObservation is a raw remembered event, usually a dialogue line.
	TypeObservation MemoryType = "observation"
	// TypeReflection is a consolidated insight derived from observations.
	TypeReflection MemoryType = "reflection"
	// TypePlan is a forward-looking intention, such as a promise.
	TypePlan MemoryType = "plan"
)

// Tags classify memories for retrieval and decay decisions.
const (
	TagCore      = "core" // never decays
	TagEmotional = "emotional"
	TagPlayer    = "player"
	TagGift      = "gift"
	TagQuest     = "quest"
	TagSecret    = "secret"
	TagPromise   = "promise"
)

// Memory is a single remembered item belonging to one character.
type Memory struct {
	ID            int64      `json:"id"`
	OwnerID       string     `json:"owner_id"`
	Type          MemoryType `json:"type"`
	Content       string     `json:"content"`
	Embedding     []float32  `json:"embedding,omitempty"`
	Importance    float64    `json:"importance"` // 0.0 to 1.0
	Core          bool       `json:"core"`
	Tags          []string   `json:"tags,omitempty"`
	CreatedDay    int64      `json:"created_day"`
	LastAccessDay int64      `json:"last_accessed_day"`
	AccessCount   int64      `json:"access_count"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// RetrieveQuery controls memory retrieval for one character.
type RetrieveQuery struct {
	OwnerID       string
	QueryText     string
	K             int // max results, default 5
	MinImportance float64
	Types         []MemoryType
	Tags          []string // every listed tag must be present
}

// RetrieveResult pairs a memory with its composite retrieval score.
type RetrieveResult struct {
	Memory    *Memory
	Score     float64
	Relevance float64
}

// OwnerSummary describes what a character currently remembers.
type OwnerSummary struct {
	OwnerID       string             `json:"owner_id"`
	Total         int                `json:"total"`
	CoreCount     int                `json:"core_count"`
	ByType        map[MemoryType]int `json:"by_type"`
	AvgImportance float64            `json:"avg_importance"`
}

// Summarizer condenses a batch of memories into one reflective statement.
type Summarizer interface {
	SummarizeMemories(ctx context.Context, memories []Memory) (string, error)
}
