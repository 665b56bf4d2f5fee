package memory

import "fmt"

// Type classifies a memory record
type Type string

const (
	TypeSession  Type = "session_memory"
	TypeLongTerm Type = "long_term_memory"
	TypeProject  Type = "project_memory"

	// DefaultType is used by hosts when the caller does not pick a type
	DefaultType = TypeLongTerm
)

// AllTypes lists every valid memory type in display order
var AllTypes = []Type{TypeSession, TypeLongTerm, TypeProject}

// Valid reports whether t is one of the known memory types
func (t Type) Valid() bool {
	switch t {
	case TypeSession, TypeLongTerm, TypeProject:
		return true
	}
	return false
}

// ParseType converts a string into a Type
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.Valid() {
		return "", &ValidationError{Field: "type", Msg: fmt.Sprintf("unknown memory type %q", s)}
	}
	return t, nil
}

// ParseTypes converts a list of strings into Types, failing on the first unknown value
func ParseTypes(values []string) ([]Type, error) {
	if len(values) == 0 {
		return nil, nil
	}
	types := make([]Type, 0, len(values))
	for _, v := range values {
		t, err := ParseType(v)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}

// Record is a single persisted memory
type Record struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Timestamp int64     `json:"timestamp"`
	FileRefs  []string  `json:"file_refs"`
	Summary   string    `json:"summary"`
	Raw       string    `json:"raw"`
	Tags      []string  `json:"tags"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// Stats summarizes the contents of a store
type Stats struct {
	Total  int          `json:"total"`
	ByType map[Type]int `json:"by_type"`
}

// Result is a fused retrieval hit
type Result struct {
	Record       Record   `json:"record"`
	Score        float64  `json:"score"`
	LexicalScore *float64 `json:"lexical_score,omitempty"`
	VectorScore  *float64 `json:"vector_score,omitempty"`
}

// Records extracts the records from a result list, keeping order
func Records(results []Result) []Record {
	records := make([]Record, len(results))
	for i, r := range results {
		records[i] = r.Record
	}
	return records
}
