package lakeapi

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/couchcryptid/glacier-risk-map/internal/domain"
)

// lakeRecord is a lake report as the service serializes it.
type lakeRecord struct {
	ID                 any             `json:"id"`
	LakeName           string          `json:"lakeName"`
	Latitude           json.Number     `json:"latitude"`
	Longitude          json.Number     `json:"longitude"`
	Region             string          `json:"region"`
	RiskLevel          string          `json:"riskLevel"`
	AreaKm2            json.Number     `json:"Lake_Area_km2"`
	DamSlopeDeg        json.Number     `json:"Dam_Slope_deg"`
	TempC              json.Number     `json:"Lake_Temp_C"`
	ElevationM         json.Number     `json:"Elevation_m"`
	ObservationDate    string          `json:"observationDate"`
	Confidence         json.Number     `json:"confidence"`
	AssessedAt         string          `json:"assessedAt"`
	VerificationStatus string          `json:"verificationStatus"`
	VerifiedByID       any             `json:"verifiedById"`
	VerifiedAt         *string         `json:"verifiedAt"`
	DeclineByID        any             `json:"declineById"`
	DeclinedAt         *string         `json:"declinedAt"`
	CreatedAt          string          `json:"createdAt"`
	UploadedBy         *officialRecord `json:"uploadedBy"`
	VerifiedBy         *officialRecord `json:"verifiedBy"`
}

// uploadRecord is the body the service accepts for a new lake report.
type uploadRecord struct {
	LakeName    string  `json:"lakeName"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Region      string  `json:"region"`
	AreaKm2     float64 `json:"Lake_Area_km2"`
	DamSlopeDeg float64 `json:"Dam_Slope_deg"`
	TempC       float64 `json:"Lake_Temp_C"`
	ElevationM  float64 `json:"Elevation_m"`
}

func newUploadRecord(u domain.LakeUpload) uploadRecord {
	return uploadRecord{
		LakeName:    u.Name,
		Latitude:    u.Latitude,
		Longitude:   u.Longitude,
		Region:      u.Region,
		AreaKm2:     u.AreaKm2,
		DamSlopeDeg: u.DamSlopeDeg,
		TempC:       u.TempC,
		ElevationM:  u.ElevationM,
	}
}

type officialRecord struct {
	ID         any     `json:"id"`
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	Position   string  `json:"position"`
	Department string  `json:"department"`
	Photo      *string `json:"photo"`
}

func (r lakeRecord) toDomain() (domain.Lake, error) {
	id, err := domain.ParseLakeID(r.ID)
	if err != nil {
		return domain.Lake{}, err
	}
	lat, err := number(r.Latitude)
	if err != nil {
		return domain.Lake{}, fmt.Errorf("lake %s latitude: %w", id, err)
	}
	lon, err := number(r.Longitude)
	if err != nil {
		return domain.Lake{}, fmt.Errorf("lake %s longitude: %w", id, err)
	}

	lake := domain.Lake{
		ID:          id,
		Name:        r.LakeName,
		Latitude:    lat,
		Longitude:   lon,
		Region:      r.Region,
		RiskLevel:   domain.ParseRiskLevel(r.RiskLevel),
		Confidence:  numberOrZero(r.Confidence),
		AreaKm2:     numberOrZero(r.AreaKm2),
		DamSlopeDeg: numberOrZero(r.DamSlopeDeg),
		TempC:       numberOrZero(r.TempC),
		ElevationM:  numberOrZero(r.ElevationM),
		ObservedAt:  parseTime(r.ObservationDate),
		AssessedAt:  parseTime(r.AssessedAt),
		CreatedAt:   parseTime(r.CreatedAt),
		Status:      domain.ParseVerificationStatus(r.VerificationStatus),
		VerifiedAt:  parseTimePtr(r.VerifiedAt),
		DeclinedAt:  parseTimePtr(r.DeclinedAt),
	}

	if r.UploadedBy != nil {
		if off, err := r.UploadedBy.toDomain(); err == nil {
			lake.UploadedBy = &off
		}
	}
	lake.VerifiedBy = officialRef(r.VerifiedBy, r.VerifiedByID)
	lake.DeclinedBy = officialRef(nil, r.DeclineByID)
	return lake, nil
}

func (o officialRecord) toDomain() (domain.Official, error) {
	id, err := domain.ParseLakeID(o.ID)
	if err != nil {
		return domain.Official{}, fmt.Errorf("official id: %w", err)
	}
	off := domain.Official{
		ID:         int64(id),
		Name:       o.Name,
		Email:      o.Email,
		Position:   o.Position,
		Department: o.Department,
	}
	if o.Photo != nil {
		off.PhotoURL = *o.Photo
	}
	return off, nil
}

// officialRef prefers the embedded record and falls back to a bare id.
func officialRef(rec *officialRecord, rawID any) *domain.Official {
	if rec != nil {
		if off, err := rec.toDomain(); err == nil {
			return &off
		}
	}
	if rawID == nil {
		return nil
	}
	id, err := domain.ParseLakeID(rawID)
	if err != nil {
		return nil
	}
	return &domain.Official{ID: int64(id)}
}

func number(n json.Number) (float64, error) {
	if n == "" {
		return 0, nil
	}
	return strconv.ParseFloat(string(n), 64)
}

func numberOrZero(n json.Number) float64 {
	f, _ := number(n)
	return f
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func parseTimePtr(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t := parseTime(*s)
	if t.IsZero() {
		return nil
	}
	return &t
}
