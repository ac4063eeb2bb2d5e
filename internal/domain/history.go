package domain

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// Feature names sent to the model server. The classifier was trained on
// station variables: relative humidity, infrared radiation, wind speed in
// m/s, and the wind direction encoded as sin/cos components.
const (
	featHumidity     = "HR"
	featRadiation    = "radinf"
	featWindSpeed    = "vel"
	featDirectionSin = "dir_sin"
	featDirectionCos = "dir_cos"
)

// Typical values where the public weather feed has no equivalent variable.
// The training station measures infrared radiation directly; Open-Meteo
// does not, so the stored history uses the long-term station mean and the
// at-prediction value uses the nocturnal typical.
const (
	storedRadiationWm2    = 300
	nocturnalRadiationWm2 = 320
)

// historyDepth is the number of hourly observations retained per location,
// enough to compute the deepest (24 h) lag.
const historyDepth = 24

// FeatureVector is a named feature set for one inference request.
type FeatureVector map[string]float64

// LocationKey buckets nearby coordinates into one history stream.
// 4 decimal places ≈ 11 m, well below the model's spatial resolution.
func LocationKey(lat, lon float64) string {
	return fmt.Sprintf("%.4f_%.4f", lat, lon)
}

type historyEntry struct {
	at       time.Time
	features FeatureVector
}

// HistoryStore keeps a bounded per-location ring of recent observations so
// lag features survive across requests. In-memory only: history rebuilds
// within a day of traffic after a restart.
type HistoryStore struct {
	mu      sync.Mutex
	entries map[string][]historyEntry
}

// NewHistoryStore creates an empty history store.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{entries: make(map[string][]historyEntry)}
}

// Record appends an observation to the location's history, evicting the
// oldest entry beyond the retention depth.
func (s *HistoryStore) Record(key string, obs Observation) {
	entry := historyEntry{at: clock.Now(), features: observationFeatures(obs, storedRadiationWm2)}

	s.mu.Lock()
	defer s.mu.Unlock()

	ring := append(s.entries[key], entry)
	if len(ring) > historyDepth {
		ring = ring[len(ring)-historyDepth:]
	}
	s.entries[key] = ring
}

// Len reports the number of retained entries for a location.
func (s *HistoryStore) Len(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries[key])
}

// Features builds the full classifier feature vector for a location:
// current values plus 6/12/24 h lags. When history is shorter than a lag,
// the oldest retained entry stands in; with no history at all, the current
// values do.
func (s *HistoryStore) Features(key string, obs Observation) FeatureVector {
	current := observationFeatures(obs, nocturnalRadiationWm2)

	s.mu.Lock()
	ring := s.entries[key]
	s.mu.Unlock()

	features := make(FeatureVector, len(current)*4)
	for name, value := range current {
		features[name] = value
	}

	for _, lagHours := range []int{6, 12, 24} {
		lagged := current
		if len(ring) >= lagHours {
			lagged = ring[len(ring)-lagHours].features
		} else if len(ring) > 0 {
			lagged = ring[0].features
		}
		for name := range current {
			features[fmt.Sprintf("%s_lag_%dh", name, lagHours)] = lagged[name]
		}
	}

	return features
}

// observationFeatures converts provider units to the station's: wind km/h
// to m/s, wind direction degrees to sin/cos components.
func observationFeatures(obs Observation, radiation float64) FeatureVector {
	dirRad := obs.WindDirection * math.Pi / 180
	return FeatureVector{
		featHumidity:     obs.Humidity,
		featRadiation:    radiation,
		featWindSpeed:    obs.WindSpeed / 3.6,
		featDirectionSin: math.Sin(dirRad),
		featDirectionCos: math.Cos(dirRad),
	}
}
