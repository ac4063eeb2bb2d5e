package domain

import (
	"fmt"
	"time"
)

// Frost analysis constants.
const (
	// frostThresholdC flags a forecast hour as frost-risk.
	frostThresholdC = 2.0

	// Night window bounds (local hours, inclusive). Frost forms between
	// late evening and early morning in the altiplano.
	nightStartHour = 18
	nightEndHour   = 8

	// maxFrostRiskHours caps the hours carried in a summary.
	maxFrostRiskHours = 12
)

// Observation holds current conditions at a point, as reported by the
// weather provider. Units follow Open-Meteo: °C, %, hPa, km/h, mm, cm.
type Observation struct {
	Timestamp           string  `json:"timestamp,omitempty"`
	Temperature         float64 `json:"temperature"`
	ApparentTemperature float64 `json:"apparent_temperature"`
	Humidity            float64 `json:"humidity"`
	PressureMSL         float64 `json:"pressure_msl,omitempty"`
	SurfacePressure     float64 `json:"surface_pressure,omitempty"`
	WindSpeed           float64 `json:"wind_speed"`
	WindDirection       float64 `json:"wind_direction"`
	WindGusts           float64 `json:"wind_gusts,omitempty"`
	Precipitation       float64 `json:"precipitation"`
	Snowfall            float64 `json:"snowfall"`
	CloudCover          float64 `json:"cloud_cover"`
	WeatherCode         int     `json:"weather_code"`
}

// ForecastHour is one hour of the forecast. Optional measurements are
// pointers so "not reported" and "zero" stay distinct.
type ForecastHour struct {
	Time               string   `json:"time"`
	Temperature        *float64 `json:"temperature,omitempty"`
	Humidity           *float64 `json:"humidity,omitempty"`
	DewPoint           *float64 `json:"dew_point,omitempty"`
	WindSpeed          *float64 `json:"wind_speed,omitempty"`
	CloudCover         *float64 `json:"cloud_cover,omitempty"`
	Precipitation      *float64 `json:"precipitation,omitempty"`
	SoilTemperature0cm *float64 `json:"soil_temperature_0cm,omitempty"`
}

// ForecastSummary aggregates the night-window frost statistics of a
// forecast.
type ForecastSummary struct {
	TotalHours             int            `json:"total_hours"`
	NightHoursCount        int            `json:"night_hours_count"`
	FrostRiskHoursCount    int            `json:"frost_risk_hours_count"`
	MinTemperatureForecast *float64       `json:"min_temperature_forecast,omitempty"`
	MinSoilTemperature     *float64       `json:"min_soil_temperature,omitempty"`
	FrostRiskHours         []ForecastHour `json:"frost_risk_hours,omitempty"`
}

// WeatherSnapshot is everything the analysis consumes from the weather
// provider for one request.
type WeatherSnapshot struct {
	Current   Observation     `json:"current"`
	Forecast  []ForecastHour  `json:"forecast"`
	Summary   ForecastSummary `json:"forecast_summary"`
	Elevation float64         `json:"elevation"`
	Timezone  string          `json:"timezone,omitempty"`
}

// SummarizeFrostRisk derives the night-window frost statistics from an
// hourly forecast. Hours with unparseable timestamps or missing
// temperatures are skipped, not defaulted.
func SummarizeFrostRisk(forecast []ForecastHour) ForecastSummary {
	summary := ForecastSummary{TotalHours: len(forecast)}

	for _, hour := range forecast {
		t, err := parseForecastTime(hour.Time)
		if err != nil {
			continue
		}
		if t.Hour() < nightStartHour && t.Hour() > nightEndHour {
			continue
		}
		summary.NightHoursCount++

		if hour.Temperature != nil {
			summary.MinTemperatureForecast = minPtr(summary.MinTemperatureForecast, *hour.Temperature)
			if *hour.Temperature < frostThresholdC {
				summary.FrostRiskHoursCount++
				if len(summary.FrostRiskHours) < maxFrostRiskHours {
					summary.FrostRiskHours = append(summary.FrostRiskHours, hour)
				}
			}
		}
		if hour.SoilTemperature0cm != nil {
			summary.MinSoilTemperature = minPtr(summary.MinSoilTemperature, *hour.SoilTemperature0cm)
		}
	}

	return summary
}

// parseForecastTime accepts Open-Meteo's minute-resolution ISO timestamps,
// with or without a zone offset.
func parseForecastTime(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02T15:04", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse forecast time %q", s)
}

func minPtr(current *float64, candidate float64) *float64 {
	if current == nil || candidate < *current {
		return &candidate
	}
	return current
}

// wmoDescriptions maps WMO weather codes to Spanish descriptions shown to
// users and fed to the AI prompt.
var wmoDescriptions = map[int]string{
	0:  "Cielo despejado",
	1:  "Principalmente despejado",
	2:  "Parcialmente nublado",
	3:  "Nublado",
	45: "Neblina",
	48: "Neblina con escarcha",
	51: "Llovizna ligera",
	53: "Llovizna moderada",
	55: "Llovizna densa",
	56: "Llovizna helada ligera",
	57: "Llovizna helada densa",
	61: "Lluvia ligera",
	63: "Lluvia moderada",
	65: "Lluvia fuerte",
	66: "Lluvia helada ligera",
	67: "Lluvia helada fuerte",
	71: "Nevada ligera",
	73: "Nevada moderada",
	75: "Nevada fuerte",
	77: "Granos de nieve",
	80: "Chubascos ligeros",
	81: "Chubascos moderados",
	82: "Chubascos violentos",
	85: "Chubascos de nieve ligeros",
	86: "Chubascos de nieve fuertes",
	95: "Tormenta eléctrica",
	96: "Tormenta con granizo ligero",
	99: "Tormenta con granizo fuerte",
}

// WeatherDescription interprets a WMO weather code.
func WeatherDescription(code int) string {
	if desc, ok := wmoDescriptions[code]; ok {
		return desc
	}
	return fmt.Sprintf("Código desconocido: %d", code)
}

// FrostFavorable reports whether the sky condition favors radiative frost.
// Clear skies maximize radiative heat loss overnight.
func FrostFavorable(code int) bool {
	return code == 0 || code == 1
}
