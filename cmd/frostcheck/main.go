// Command frostcheck replays assessment scenarios from a JSON fixture
// through the geofence, reconciliation and alert-gate logic, and compares
// the results against expected values. It runs fully offline: no weather,
// model-server or AI calls.
//
// Usage:
//
//	go run ./cmd/frostcheck -scenarios testdata/scenarios.json
//
// Fixture format (one array of scenarios):
//
//	[
//	  {
//	    "name": "disagreement rounds risk up",
//	    "location": {"latitude": -12.0383, "longitude": -75.3228},
//	    "phone_number": "987654321",
//	    "ml": {"class_name": "Riesgo", "confidence": 0.7,
//	           "probabilities": {"SinRiesgo": 0.3, "Riesgo": 0.7}},
//	    "ai": {"clasificacion_final": "Moderada", "confianza_analisis": "media"},
//	    "expected": {
//	      "in_coverage": true,
//	      "risk_class": "Moderada",
//	      "frost_probability_pct": 70,
//	      "system_confidence_pct": 49,
//	      "sources_agree": false,
//	      "should_send": true
//	    }
//	  }
//	]
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/wayrafrost/frost-alert-service/internal/domain"
)

// station is the default coverage geofence, matching the service defaults.
var station = domain.ReferenceStation{
	Name:          "Huayao",
	Institution:   "Instituto Geofísico del Perú",
	Latitude:      -12.0383,
	Longitude:     -75.3228,
	Elevation:     3350,
	ValidRadiusKM: 50,
}

type scenario struct {
	Name        string              `json:"name"`
	Location    domain.Location     `json:"location"`
	PhoneNumber string              `json:"phone_number"`
	ML          domain.MLPrediction `json:"ml"`
	AI          *domain.AIAnalysis  `json:"ai"`
	Expected    expectation         `json:"expected"`
}

// expectation is the observable result of one scenario.
type expectation struct {
	InCoverage          bool             `json:"in_coverage"`
	RiskClass           domain.RiskClass `json:"risk_class"`
	FrostProbabilityPct float64          `json:"frost_probability_pct"`
	SystemConfidencePct int              `json:"system_confidence_pct"`
	SourcesAgree        bool             `json:"sources_agree"`
	ShouldSend          bool             `json:"should_send"`
}

func main() {
	scenariosPath := flag.String("scenarios", "", "path to the scenarios JSON fixture")
	flag.Parse()

	if *scenariosPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	os.Exit(run(*scenariosPath))
}

func run(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read scenarios: %v\n", err)
		return 1
	}

	var scenarios []scenario
	if err := json.Unmarshal(data, &scenarios); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: parse scenarios: %v\n", err)
		return 1
	}
	if len(scenarios) == 0 {
		fmt.Fprintln(os.Stderr, "FATAL: fixture contains no scenarios")
		return 1
	}

	fmt.Println("=== Frost Assessment Scenario Check ===")
	fmt.Println()

	failures := 0
	for _, sc := range scenarios {
		diff, err := check(sc)
		switch {
		case err != nil:
			failures++
			fmt.Printf("  %-48s \033[31mERROR\033[0m\n", sc.Name)
			fmt.Printf("      %v\n", err)
		case diff != "":
			failures++
			fmt.Printf("  %-48s \033[31mFAIL\033[0m\n", sc.Name)
			fmt.Println(indent(diff))
		default:
			fmt.Printf("  %-48s \033[32mPASS\033[0m\n", sc.Name)
		}
	}

	fmt.Println()
	fmt.Printf("Scenarios: %d total, %d failed\n", len(scenarios), failures)
	if failures > 0 {
		return 1
	}
	return 0
}

// check replays one scenario and diffs the observable result against the
// expectation.
func check(sc scenario) (string, error) {
	validation, err := domain.ValidateLocation(sc.Location.Latitude, sc.Location.Longitude, station)
	if err != nil {
		return "", fmt.Errorf("validate location: %w", err)
	}

	got := expectation{InCoverage: validation.IsValid}

	if validation.IsValid {
		assessment, err := domain.Assess(sc.ML, sc.AI)
		if err != nil {
			return "", fmt.Errorf("assess: %w", err)
		}
		got.RiskClass = assessment.RiskClass
		got.FrostProbabilityPct = assessment.FrostProbabilityPct
		got.SystemConfidencePct = assessment.SystemConfidencePct
		got.SourcesAgree = assessment.SourcesAgree

		decision := domain.DecideAlert(validation, sc.PhoneNumber, &assessment)
		got.ShouldSend = decision.ShouldSend
	} else {
		decision := domain.DecideAlert(validation, sc.PhoneNumber, nil)
		got.ShouldSend = decision.ShouldSend
	}

	return cmp.Diff(sc.Expected, got), nil
}

func indent(s string) string {
	var out strings.Builder
	for _, line := range strings.Split(strings.TrimRight(s, "\n"), "\n") {
		out.WriteString("      " + line + "\n")
	}
	return out.String()
}
