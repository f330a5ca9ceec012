package domain

import (
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// VerificationStatus tracks where a report is in the triage workflow.
type VerificationStatus string

const (
	StatusPending  VerificationStatus = "PENDING"
	StatusVerified VerificationStatus = "VERIFIED"
	StatusRejected VerificationStatus = "REJECTED"
)

// ParseVerificationStatus normalizes a status string from the data service.
// An empty value means the report has not been triaged yet.
func ParseVerificationStatus(s string) VerificationStatus {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return StatusPending
	}
	return VerificationStatus(s)
}

// Official is a staff member who uploads or triages lake reports.
type Official struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Position   string `json:"position,omitempty"`
	Department string `json:"department,omitempty"`
	PhotoURL   string `json:"photo_url,omitempty"`
}

// Lake is a single glacier lake hazard report. Values are immutable once
// ingested; a refresh replaces the whole set.
type Lake struct {
	ID          LakeID    `json:"id"`
	Name        string    `json:"name"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Region      string    `json:"region,omitempty"`
	RiskLevel   RiskLevel `json:"risk_level"`
	Confidence  float64   `json:"confidence"`
	AreaKm2     float64   `json:"area_km2,omitempty"`
	DamSlopeDeg float64   `json:"dam_slope_deg,omitempty"`
	TempC       float64   `json:"temp_c,omitempty"`
	ElevationM  float64   `json:"elevation_m,omitempty"`

	ObservedAt time.Time `json:"observed_at,omitzero"`
	AssessedAt time.Time `json:"assessed_at,omitzero"`
	CreatedAt  time.Time `json:"created_at,omitzero"`

	Status     VerificationStatus `json:"status,omitempty"`
	VerifiedBy *Official          `json:"verified_by,omitempty"`
	VerifiedAt *time.Time         `json:"verified_at,omitempty"`
	DeclinedBy *Official          `json:"declined_by,omitempty"`
	DeclinedAt *time.Time         `json:"declined_at,omitempty"`
	UploadedBy *Official          `json:"uploaded_by,omitempty"`
}

// Position returns the lake's location as [lon, lat].
func (l Lake) Position() orb.Point {
	return orb.Point{l.Longitude, l.Latitude}
}

// HasPosition reports whether the lake carries real coordinates. Stubs built
// from a clicked feature do not.
func (l Lake) HasPosition() bool {
	return l.Latitude != 0 || l.Longitude != 0
}

// Decided reports whether the report has left the PENDING state.
func (l Lake) Decided() bool {
	return l.Status == StatusVerified || l.Status == StatusRejected
}
