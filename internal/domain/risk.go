package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// RiskClass is one of four ordered frost severities. The integer value is
// the ordinal position used by [Reconcile]; never reorder the constants.
type RiskClass int

const (
	SinRiesgo RiskClass = iota
	Riesgo
	Moderada
	Severa
)

var riskClassNames = [...]string{"SinRiesgo", "Riesgo", "Moderada", "Severa"}

func (c RiskClass) String() string {
	if c < SinRiesgo || c > Severa {
		return fmt.Sprintf("RiskClass(%d)", int(c))
	}
	return riskClassNames[c]
}

// Valid reports whether c is one of the four declared classes.
func (c RiskClass) Valid() bool {
	return c >= SinRiesgo && c <= Severa
}

// ParseRiskClass converts a wire label into a RiskClass. The legacy model
// server emits "Sin Riesgo" with a space; both spellings are accepted.
func ParseRiskClass(s string) (RiskClass, error) {
	switch strings.TrimSpace(s) {
	case "SinRiesgo", "Sin Riesgo":
		return SinRiesgo, nil
	case "Riesgo":
		return Riesgo, nil
	case "Moderada":
		return Moderada, nil
	case "Severa":
		return Severa, nil
	default:
		return SinRiesgo, fmt.Errorf("unknown risk class %q", s)
	}
}

func (c RiskClass) MarshalJSON() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("marshal risk class: invalid value %d", int(c))
	}
	return json.Marshal(c.String())
}

func (c *RiskClass) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("unmarshal risk class: %w", err)
	}
	parsed, err := ParseRiskClass(s)
	if err != nil {
		return fmt.Errorf("unmarshal risk class: %w", err)
	}
	*c = parsed
	return nil
}

// Confianza is the AI analysis's self-reported confidence category.
type Confianza string

const (
	ConfianzaAlta  Confianza = "alta"
	ConfianzaMedia Confianza = "media"
	ConfianzaBaja  Confianza = "baja"
)

// Percent maps the category to a 0–100 confidence percentage. An unknown
// or empty category is treated as media.
func (c Confianza) Percent() float64 {
	switch c {
	case ConfianzaAlta:
		return 90
	case ConfianzaMedia:
		return 70
	case ConfianzaBaja:
		return 50
	default:
		return 70
	}
}

// DisagreementPenalty dampens the blended confidence when the two sources
// disagree. Fixed constant, not user-configurable.
const DisagreementPenalty = 0.7

// MLPrediction is the classifier's verdict for one request.
// Probabilities is keyed by risk class label and sums to 1.0 within ε.
type MLPrediction struct {
	ClassName     RiskClass          `json:"class_name"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities"`
}

// RiskFactor is one AI-identified risk or protection factor.
type RiskFactor struct {
	Factor      string `json:"factor"`
	Impacto     string `json:"impacto"`
	Descripcion string `json:"descripcion"`
}

// CriticalHour is one forecast hour the AI flags as critical.
type CriticalHour struct {
	Hora                string  `json:"hora"`
	TemperaturaEsperada float64 `json:"temperatura_esperada"`
	Riesgo              string  `json:"riesgo"`
}

// SectorImpact describes expected impact on one economic sector.
// NivelRiesgo is one of bajo|medio|alto|critico.
type SectorImpact struct {
	NivelRiesgo string `json:"nivel_riesgo"`
	Descripcion string `json:"descripcion,omitempty"`
}

// SectorImpacts groups the per-sector impact blocks.
type SectorImpacts struct {
	Agricultura SectorImpact `json:"agricultura"`
	Ganaderia   SectorImpact `json:"ganaderia"`
	Salud       SectorImpact `json:"salud"`
}

// Recommendation is one AI-suggested protective action.
type Recommendation struct {
	Prioridad int    `json:"prioridad"`
	Accion    string `json:"accion"`
	Urgencia  string `json:"urgencia"`
}

// AIAnalysis is the structured output of the generative-AI weather analysis
// service. A nil *AIAnalysis means the service was unavailable for the
// request; field absence and zero are kept distinct via pointers.
type AIAnalysis struct {
	ClasificacionFinal   RiskClass        `json:"clasificacion_final"`
	ProbabilidadEstimada *float64         `json:"probabilidad_estimada,omitempty"`
	ConfianzaAnalisis    Confianza        `json:"confianza_analisis"`
	DiscrepanciaML       string           `json:"discrepancia_ml,omitempty"`
	ResumenEjecutivo     string           `json:"resumen_ejecutivo,omitempty"`
	FactoresRiesgo       []RiskFactor     `json:"factores_riesgo,omitempty"`
	FactoresProteccion   []RiskFactor     `json:"factores_proteccion,omitempty"`
	HorasCriticas        []CriticalHour   `json:"horas_criticas,omitempty"`
	ImpactoSectores      *SectorImpacts   `json:"impacto_sectores,omitempty"`
	Recomendaciones      []Recommendation `json:"recomendaciones,omitempty"`
}

// CombinedAssessment is the merged verdict built once per request and never
// mutated after construction.
type CombinedAssessment struct {
	RiskClass           RiskClass `json:"risk_class"`
	FrostProbabilityPct float64   `json:"frost_probability_pct"`
	SystemConfidencePct int       `json:"system_confidence_pct"`
	SourcesAgree        bool      `json:"sources_agree"`
	DisagreementNote    string    `json:"disagreement_note,omitempty"`
}

// Reconcile merges the classifier's class with the AI's class into one
// verdict. A nil AI class yields the ML class unchanged; otherwise the
// higher-order class wins, so risk never rounds down on disagreement.
// Total over the declared enum: callers validate membership upstream.
func Reconcile(ml RiskClass, ai *RiskClass) RiskClass {
	if ai == nil {
		return ml
	}
	if *ai > ml {
		return *ai
	}
	return ml
}

// BlendConfidence computes the 0–100 system confidence from the classifier
// confidence (0–1), the AI confidence category (nil when AI is absent), and
// whether the two sources agree. Agreement averages; disagreement takes the
// minimum dampened by DisagreementPenalty.
func BlendConfidence(mlConfidence float64, ai *Confianza, agree bool) int {
	aiPct := ConfianzaMedia.Percent()
	if ai != nil {
		aiPct = ai.Percent()
	}
	mlPct := mlConfidence * 100

	var blended float64
	if agree {
		blended = (mlPct + aiPct) / 2
	} else {
		blended = math.Min(mlPct, aiPct) * DisagreementPenalty
	}

	pct := int(math.Round(blended))
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct
}

// ResolveFrostProbability picks the displayed frost probability. The AI's
// natural-language-grounded estimate is authoritative when present; the
// fallback is the complement of the classifier's no-risk probability.
// A probability vector without the SinRiesgo class is a data-contract
// violation, not a silent zero.
func ResolveFrostProbability(probabilities map[string]float64, aiEstimate *float64) (float64, error) {
	if aiEstimate != nil {
		return clampPct(*aiEstimate), nil
	}

	noRisk, ok := probabilities[SinRiesgo.String()]
	if !ok {
		// Legacy model servers key this class with a space.
		noRisk, ok = probabilities["Sin Riesgo"]
	}
	if !ok {
		return 0, fmt.Errorf("%w: probabilities missing %q", ErrMalformedPrediction, SinRiesgo.String())
	}
	return clampPct(100 - noRisk*100), nil
}

func clampPct(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Assess combines the classifier prediction with the optional AI analysis
// into one CombinedAssessment. Pure and side-effect-free; safe to call from
// any number of concurrent request handlers.
func Assess(ml MLPrediction, ai *AIAnalysis) (CombinedAssessment, error) {
	agree := true
	var aiClass *RiskClass
	var aiConfianza *Confianza
	var aiEstimate *float64
	var note string

	if ai != nil {
		aiClass = &ai.ClasificacionFinal
		aiConfianza = &ai.ConfianzaAnalisis
		aiEstimate = ai.ProbabilidadEstimada
		agree = ml.ClassName == ai.ClasificacionFinal
		if !agree {
			note = ai.DiscrepanciaML
		}
	}

	probability, err := ResolveFrostProbability(ml.Probabilities, aiEstimate)
	if err != nil {
		return CombinedAssessment{}, err
	}

	return CombinedAssessment{
		RiskClass:           Reconcile(ml.ClassName, aiClass),
		FrostProbabilityPct: probability,
		SystemConfidencePct: BlendConfidence(ml.Confidence, aiConfianza, agree),
		SourcesAgree:        agree,
		DisagreementNote:    note,
	}, nil
}
