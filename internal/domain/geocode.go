package domain

import (
	"context"
	"log/slog"
)

// ReverseLabel looks up a human-readable place label for a lake. A nil
// geocoder, a lake without coordinates or a failed lookup all yield an empty
// label; failures are logged and never surfaced to the caller.
func ReverseLabel(ctx context.Context, lake Lake, geocoder Geocoder, logger *slog.Logger) string {
	if geocoder == nil || !lake.HasPosition() {
		return ""
	}

	result, err := geocoder.ReverseGeocode(ctx, lake.Latitude, lake.Longitude)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"lake_id", lake.ID,
			"lat", lake.Latitude,
			"lon", lake.Longitude,
			"error", err,
		)
		return ""
	}
	return result.FormattedAddress
}
