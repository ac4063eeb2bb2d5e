package gemini

import (
	"fmt"
	"strings"

	"github.com/wayrafrost/frost-alert-service/internal/domain"
)

// promptFrostHoursMax caps how many critical hours the prompt lists.
const promptFrostHoursMax = 10

// buildPrompt renders the analysis prompt in Spanish. The model is told the
// exact JSON structure to reply with; the classifier's verdict is included
// so the model can flag discrepancies.
func buildPrompt(weather domain.WeatherSnapshot, ml domain.MLPrediction, station domain.ReferenceStation) string {
	cur := weather.Current
	summary := weather.Summary

	var b strings.Builder
	b.WriteString("Eres un experto agrometeorólogo especializado en predicción de heladas en zonas altoandinas.\n")
	b.WriteString("Analiza los siguientes datos meteorológicos y la predicción de nuestro modelo de Machine Learning ")
	b.WriteString("para proporcionar un análisis detallado del riesgo de heladas.\n\n")

	fmt.Fprintf(&b, "## ZONA DE COBERTURA: %s (%s)\n", station.Name, station.Institution)
	fmt.Fprintf(&b, "- Elevación: %.0f metros sobre el nivel del mar\n", weather.Elevation)
	fmt.Fprintf(&b, "- Coordenadas de referencia: %.4f°, %.4f°\n\n", station.Latitude, station.Longitude)

	b.WriteString("## CONDICIONES ACTUALES (Fuente: Open-Meteo)\n")
	fmt.Fprintf(&b, "- Temperatura actual: %.1f°C\n", cur.Temperature)
	fmt.Fprintf(&b, "- Sensación térmica: %.1f°C\n", cur.ApparentTemperature)
	fmt.Fprintf(&b, "- Humedad relativa: %.0f%%\n", cur.Humidity)
	fmt.Fprintf(&b, "- Presión en superficie: %.1f hPa\n", cur.SurfacePressure)
	fmt.Fprintf(&b, "- Velocidad del viento: %.1f km/h\n", cur.WindSpeed)
	fmt.Fprintf(&b, "- Dirección del viento: %.0f°\n", cur.WindDirection)
	fmt.Fprintf(&b, "- Cobertura de nubes: %.0f%%\n", cur.CloudCover)
	fmt.Fprintf(&b, "- Precipitación: %.1f mm\n", cur.Precipitation)
	fmt.Fprintf(&b, "- Condición: %s\n\n", domain.WeatherDescription(cur.WeatherCode))

	b.WriteString("## PRONÓSTICO PRÓXIMAS HORAS\n")
	fmt.Fprintf(&b, "- Horas analizadas (noche/madrugada): %d\n", summary.NightHoursCount)
	fmt.Fprintf(&b, "- Horas con riesgo de helada: %d\n", summary.FrostRiskHoursCount)
	fmt.Fprintf(&b, "- Temperatura mínima pronosticada: %s°C\n", fmtOptional(summary.MinTemperatureForecast))
	fmt.Fprintf(&b, "- Temperatura mínima del suelo: %s°C\n\n", fmtOptional(summary.MinSoilTemperature))

	b.WriteString("## PREDICCIÓN DEL MODELO ML\n")
	fmt.Fprintf(&b, "- Clasificación: %s\n", ml.ClassName)
	fmt.Fprintf(&b, "- Confianza del modelo: %.1f%%\n", ml.Confidence*100)
	b.WriteString("- Probabilidades por clase:\n")
	for _, class := range []string{"SinRiesgo", "Riesgo", "Moderada", "Severa"} {
		if p, ok := ml.Probabilities[class]; ok {
			fmt.Fprintf(&b, "  - %s: %.1f%%\n", class, p*100)
		}
	}
	b.WriteString("\n## HORAS CRÍTICAS CON RIESGO DE HELADA\n")
	b.WriteString(formatFrostHours(summary.FrostRiskHours))

	b.WriteString(`

Responde ÚNICAMENTE en formato JSON con la siguiente estructura exacta:
{
    "clasificacion_final": "SinRiesgo|Riesgo|Moderada|Severa",
    "probabilidad_estimada": número entre 0 y 100,
    "confianza_analisis": "baja|media|alta",
    "discrepancia_ml": "explicación si tu clasificación difiere de la del modelo ML, cadena vacía si coinciden",
    "resumen_ejecutivo": "Resumen de 2-3 oraciones sobre el riesgo de helada",
    "factores_riesgo": [
        {"factor": "nombre del factor", "impacto": "bajo|medio|alto", "descripcion": "explicación breve"}
    ],
    "factores_proteccion": [
        {"factor": "nombre del factor", "impacto": "bajo|medio|alto", "descripcion": "explicación breve"}
    ],
    "horas_criticas": [
        {"hora": "HH:MM", "temperatura_esperada": número, "riesgo": "bajo|medio|alto"}
    ],
    "impacto_sectores": {
        "agricultura": {"nivel_riesgo": "bajo|medio|alto|critico", "descripcion": "explicación breve"},
        "ganaderia": {"nivel_riesgo": "bajo|medio|alto|critico", "descripcion": "explicación breve"},
        "salud": {"nivel_riesgo": "bajo|medio|alto|critico", "descripcion": "explicación breve"}
    },
    "recomendaciones": [
        {"prioridad": 1-5, "accion": "descripción de la acción recomendada", "urgencia": "inmediata|próximas_horas|preventiva"}
    ]
}

Importante:
- Sé preciso y basado en los datos proporcionados
- Considera la elevación para ajustar umbrales
- Prioriza la seguridad del agricultor
`)

	return b.String()
}

func formatFrostHours(hours []domain.ForecastHour) string {
	if len(hours) == 0 {
		return "No se detectaron horas con riesgo inmediato de helada en el pronóstico.\n"
	}
	if len(hours) > promptFrostHoursMax {
		hours = hours[:promptFrostHoursMax]
	}

	var b strings.Builder
	for _, h := range hours {
		fmt.Fprintf(&b, "- %s: Temp=%s°C, Humedad=%s%%, Viento=%skm/h, Suelo=%s°C\n",
			h.Time, fmtOptional(h.Temperature), fmtOptional(h.Humidity),
			fmtOptional(h.WindSpeed), fmtOptional(h.SoilTemperature0cm))
	}
	return b.String()
}

func fmtOptional(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.1f", *v)
}
