package twilio

import (
	"fmt"
	"strings"
	"time"

	"github.com/wayrafrost/frost-alert-service/internal/domain"
)

// smsMaxLength is the conservative single-dispatch limit. Trial accounts cap
// at three segments and emojis expand when encoded, so messages over this
// length fall back to the plain-ASCII variant.
const smsMaxLength = 160

// riskEmoji marks the risk class in the compact message variant.
var riskEmoji = map[domain.RiskClass]string{
	domain.SinRiesgo: "✓",
	domain.Riesgo:    "!",
	domain.Moderada:  "!!",
	domain.Severa:    "!!!",
}

// BuildAlertMessage composes the SMS body for a prediction outcome. The
// compact variant is preferred; if it exceeds the dispatch limit the
// plain-ASCII variant is used instead.
func BuildAlertMessage(outcome domain.PredictionOutcome, now time.Time) string {
	var message string
	if outcome.Available {
		message = predictionMessage(outcome, now)
		if len(message) > smsMaxLength {
			message = predictionMessageASCII(outcome, now)
		}
	} else {
		message = unavailableMessage(outcome, now)
	}
	return message
}

func predictionMessage(outcome domain.PredictionOutcome, now time.Time) string {
	class := outcome.Assessment.RiskClass
	emoji, ok := riskEmoji[class]
	if !ok {
		emoji = "?"
	}

	return strings.TrimSpace(fmt.Sprintf(`WayraFrost %s
%s
Ahora:%sC
12h:%sC 24h:%sC
%s`,
		emoji, class,
		fmtTemp(outcome.Weather.Current.Temperature),
		forecastTempAt(outcome.Weather, 12),
		forecastTempAt(outcome.Weather, 24),
		now.Format("02/01 15:04")))
}

func predictionMessageASCII(outcome domain.PredictionOutcome, now time.Time) string {
	return strings.TrimSpace(fmt.Sprintf(`WayraFrost Alerta
RIESGO: %s
Temp: %sC
12h: %sC
24h: %sC
%s
wayrafrost.app`,
		outcome.Assessment.RiskClass,
		fmtTemp(outcome.Weather.Current.Temperature),
		forecastTempAt(outcome.Weather, 12),
		forecastTempAt(outcome.Weather, 24),
		now.Format("02/01 15:04")))
}

func unavailableMessage(outcome domain.PredictionOutcome, now time.Time) string {
	return strings.TrimSpace(fmt.Sprintf(`WayraFrost
FUERA DE COBERTURA
%.0fkm de estacion
Solo valido en Junin
%s`,
		outcome.Validation.DistanceKM,
		now.Format("02/01 15:04")))
}

// forecastTempAt reads the forecast temperature the given number of hours
// ahead, "?" when the horizon is not covered.
func forecastTempAt(weather *domain.WeatherSnapshot, hours int) string {
	if weather == nil || len(weather.Forecast) < hours {
		return "?"
	}
	temp := weather.Forecast[hours-1].Temperature
	if temp == nil {
		return "?"
	}
	return fmtTemp(*temp)
}

func fmtTemp(v float64) string {
	return fmt.Sprintf("%.1f", v)
}
