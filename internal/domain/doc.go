// Package domain models frost risk assessment for the Mantaro valley
// (Junín, Peru) and the decision logic that merges two independent risk
// classifications into one verdict.
//
// # Reference Station
//
// The multiclass frost classifier is trained exclusively on observations
// from the LAMAR station at Huayao (Observatorio Geofísico del IGP,
// 12°02'18”S 75°19'22”W, 3350 m). Its output is only meaningful inside a
// circular coverage geofence around that station (default radius 50 km).
// Requests outside the geofence are a first-class "out of coverage"
// outcome, not an error. See [ValidateLocation].
//
// # Risk Classes
//
// Four ordered severities, named after the classifier's training labels:
//
//	SinRiesgo (0) < Riesgo (1) < Moderada (2) < Severa (3)
//
// The ordering is load-bearing: when the classifier and the AI analysis
// disagree, [Reconcile] returns the higher-order class so that risk never
// rounds down.
//
// # Sources
//
// Two independently produced classifications enter each request:
//
//   - MLPrediction: the multiclass classifier served by an external model
//     server, queried with current conditions plus 6/12/24 h lag features
//     derived from the per-location observation history.
//   - AIAnalysis: a structured risk assessment produced by a generative-AI
//     weather analysis service. Field names are Spanish because the analysis
//     prompt fixes the wire contract in Spanish (clasificacion_final,
//     probabilidad_estimada, confianza_analisis, …).
//
// AIAnalysis is optional end to end. When the AI service fails or is
// disabled, the assessment degrades to the classifier's verdict alone;
// AI unavailability never blocks a prediction.
//
// # Confidence Blending
//
// The system confidence is a 0–100 score combining classifier confidence
// with the AI's stated confidence category (alta→90, media→70, baja→50).
// Agreement averages the two; disagreement takes the pessimistic minimum
// dampened by a fixed 0.7 penalty. See [BlendConfidence].
//
// # Night Window
//
// Frost forms overnight. Forecast analysis considers the 18:00–08:00 local
// window and flags hours with air temperature below 2 °C as frost-risk
// hours. See [SummarizeFrostRisk].
package domain
