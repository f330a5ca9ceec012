package domain

import (
	"encoding/json"
	"strconv"
)

// SelectionKind distinguishes an empty selection, a stub built from feature
// properties and a fully resolved record.
type SelectionKind string

const (
	SelectionNone     SelectionKind = "none"
	SelectionStub     SelectionKind = "stub"
	SelectionResolved SelectionKind = "resolved"
)

// Selection is what the detail panel shows.
type Selection struct {
	Kind SelectionKind `json:"kind"`
	Lake *Lake         `json:"lake,omitempty"`
}

// NoSelection is the empty selection.
func NoSelection() Selection {
	return Selection{Kind: SelectionNone}
}

// ID returns the selected lake's id, or 0 when nothing is selected.
func (s Selection) ID() LakeID {
	if s.Lake == nil {
		return 0
	}
	return s.Lake.ID
}

// NewStub builds a minimal record from a clicked feature's properties. Only
// the id, classification and confidence are populated.
func NewStub(id LakeID, props map[string]any) Lake {
	level := RiskUnknown
	if s, ok := props[PropClassification].(string); ok {
		level = ParseRiskLevel(s)
	}
	return Lake{
		ID:         id,
		RiskLevel:  level,
		Confidence: numberProp(props[PropConfidence]),
	}
}

func numberProp(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case json.Number:
		f, _ := t.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	}
	return 0
}
