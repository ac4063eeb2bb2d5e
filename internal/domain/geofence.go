package domain

import (
	"fmt"
	"math"
)

// earthRadiusKM is the mean Earth radius used by the haversine formula.
const earthRadiusKM = 6371

// Location is a user-selected geographic point. Immutable once selected;
// lives for the duration of one analysis request.
type Location struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Elevation float64 `json:"elevation,omitempty"`
}

// ReferenceStation is the station whose training data bounds the model's
// geographic validity. Loaded once at startup, read-only afterwards.
type ReferenceStation struct {
	Name          string  `json:"name"`
	Institution   string  `json:"institution"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	Elevation     float64 `json:"elevation"`
	ValidRadiusKM float64 `json:"valid_radius_km"`
}

// ValidationResult reports whether a point falls inside the station's
// coverage geofence. IsValid and DistanceKM are the load-bearing fields;
// Message is informational only and never parsed by callers.
type ValidationResult struct {
	IsValid    bool    `json:"is_valid"`
	DistanceKM float64 `json:"distance_km"`
	Message    string  `json:"message"`
}

// HaversineKM computes the great-circle distance in kilometers between two
// WGS-84 points.
func HaversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKM * c
}

// ValidateLocation checks a point against the station's coverage geofence.
// The radius boundary is inclusive. Malformed coordinates (NaN or outside
// WGS-84 ranges) are an ErrInvalidInput, never a false "out of coverage".
func ValidateLocation(lat, lon float64, station ReferenceStation) (ValidationResult, error) {
	if err := checkCoordinates(lat, lon); err != nil {
		return ValidationResult{}, err
	}

	distance := HaversineKM(station.Latitude, station.Longitude, lat, lon)
	isValid := distance <= station.ValidRadiusKM

	var message string
	if isValid {
		message = fmt.Sprintf("Ubicación válida (%.1f km de la estación)", distance)
	} else {
		message = fmt.Sprintf(
			"Predicción no disponible para esta ubicación. El modelo está entrenado con datos de %s (distancia: %.1f km). Solo es válido dentro de un radio de %.0f km.",
			station.Name, distance, station.ValidRadiusKM,
		)
	}

	return ValidationResult{IsValid: isValid, DistanceKM: distance, Message: message}, nil
}

func checkCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return fmt.Errorf("%w: coordinates must be finite numbers", ErrInvalidInput)
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitude %v outside [-90, 90]", ErrInvalidInput, lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("%w: longitude %v outside [-180, 180]", ErrInvalidInput, lon)
	}
	return nil
}
