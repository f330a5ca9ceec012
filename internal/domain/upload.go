package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidUpload is returned for lake submissions the data service would
// not be able to place or classify.
var ErrInvalidUpload = errors.New("invalid lake upload")

// UnknownRegion is recorded when a submission has no region.
const UnknownRegion = "Unknown"

// LakeUpload is a new lake observation submitted by an official. The data
// service assigns the id and risk assessment.
type LakeUpload struct {
	Name        string  `json:"lake_name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Region      string  `json:"region"`
	AreaKm2     float64 `json:"area_km2"`
	DamSlopeDeg float64 `json:"dam_slope_deg"`
	TempC       float64 `json:"temp_c"`
	ElevationM  float64 `json:"elevation_m"`
}

// Normalize trims text fields and fills in the default region.
func (u LakeUpload) Normalize() LakeUpload {
	u.Name = strings.TrimSpace(u.Name)
	u.Region = strings.TrimSpace(u.Region)
	if u.Region == "" {
		u.Region = UnknownRegion
	}
	return u
}

// Validate rejects submissions without a name, with coordinates off the
// globe, or with non-finite or negative measurements.
func (u LakeUpload) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return fmt.Errorf("%w: lake name is required", ErrInvalidUpload)
	}
	if !finite(u.Latitude) || u.Latitude < -90 || u.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidUpload, u.Latitude)
	}
	if !finite(u.Longitude) || u.Longitude < -180 || u.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidUpload, u.Longitude)
	}
	if !finite(u.AreaKm2) || u.AreaKm2 < 0 {
		return fmt.Errorf("%w: area %v must be a non-negative number", ErrInvalidUpload, u.AreaKm2)
	}
	if !finite(u.DamSlopeDeg) || u.DamSlopeDeg < 0 || u.DamSlopeDeg > 90 {
		return fmt.Errorf("%w: dam slope %v must be between 0 and 90 degrees", ErrInvalidUpload, u.DamSlopeDeg)
	}
	if !finite(u.TempC) || !finite(u.ElevationM) {
		return fmt.Errorf("%w: temperature and elevation must be numbers", ErrInvalidUpload)
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
