package domain

import "strings"

// RiskLevel is a lake's flood-hazard classification.
type RiskLevel string

const (
	RiskHigh    RiskLevel = "HIGH"
	RiskMedium  RiskLevel = "MEDIUM"
	RiskLow     RiskLevel = "LOW"
	RiskUnknown RiskLevel = "UNKNOWN"
)

// Marker colors per classification.
const (
	ColorHigh     = "#ff3b30"
	ColorMedium   = "#ff9500"
	ColorLow      = "#00c2ff"
	FallbackColor = "#999999"
)

// ParseRiskLevel normalizes a classification string. Unrecognized values are
// preserved upper-cased; empty input yields RiskUnknown.
func ParseRiskLevel(s string) RiskLevel {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return RiskUnknown
	}
	return RiskLevel(s)
}

// Known reports whether r is one of HIGH, MEDIUM or LOW.
func (r RiskLevel) Known() bool {
	switch r {
	case RiskHigh, RiskMedium, RiskLow:
		return true
	}
	return false
}

// Color returns the marker color for r.
func (r RiskLevel) Color() string {
	switch r {
	case RiskHigh:
		return ColorHigh
	case RiskMedium:
		return ColorMedium
	case RiskLow:
		return ColorLow
	default:
		return FallbackColor
	}
}
