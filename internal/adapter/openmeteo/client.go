// Package openmeteo retrieves current conditions and hourly forecasts from
// the Open-Meteo API and shapes them into the domain's weather snapshot.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/wayrafrost/frost-alert-service/internal/domain"
	"github.com/wayrafrost/frost-alert-service/internal/observability"
	"golang.org/x/sync/errgroup"
)

// forecastHours is the horizon the frost analysis looks at: two nights.
const forecastHours = 48

// Client implements the predictor's WeatherProvider using Open-Meteo.
// The API is free and needs no key.
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an Open-Meteo client.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: metrics,
		logger:  logger,
	}
}

// FrostRiskData fetches current conditions and the 48 h hourly forecast
// concurrently and derives the night-window frost summary.
func (c *Client) FrostRiskData(ctx context.Context, lat, lon float64) (domain.WeatherSnapshot, error) {
	start := time.Now()
	defer func() {
		c.metrics.CollaboratorDuration.WithLabelValues("weather").Observe(time.Since(start).Seconds())
	}()

	var (
		current  currentResult
		forecast forecastResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		current, err = c.currentWeather(gctx, lat, lon)
		return err
	})
	g.Go(func() error {
		var err error
		forecast, err = c.hourlyForecast(gctx, lat, lon)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.WeatherSnapshot{}, err
	}

	return domain.WeatherSnapshot{
		Current:   current.observation,
		Forecast:  forecast.hours,
		Summary:   domain.SummarizeFrostRisk(forecast.hours),
		Elevation: forecast.elevation,
		Timezone:  forecast.timezone,
	}, nil
}

type currentResult struct {
	observation domain.Observation
}

type forecastResult struct {
	hours     []domain.ForecastHour
	elevation float64
	timezone  string
}

func (c *Client) currentWeather(ctx context.Context, lat, lon float64) (currentResult, error) {
	params := url.Values{
		"latitude":  {fmt.Sprintf("%.4f", lat)},
		"longitude": {fmt.Sprintf("%.4f", lon)},
		"current": {"temperature_2m,relative_humidity_2m,apparent_temperature," +
			"precipitation,snowfall,weather_code,cloud_cover,pressure_msl," +
			"surface_pressure,wind_speed_10m,wind_direction_10m,wind_gusts_10m"},
		"timezone": {"auto"},
	}

	var resp forecastResponse
	if err := c.doRequest(ctx, params, "current", &resp); err != nil {
		return currentResult{}, err
	}

	cur := resp.Current
	return currentResult{
		observation: domain.Observation{
			Timestamp:           cur.Time,
			Temperature:         cur.Temperature2m,
			ApparentTemperature: cur.ApparentTemperature,
			Humidity:            cur.RelativeHumidity2m,
			PressureMSL:         cur.PressureMSL,
			SurfacePressure:     cur.SurfacePressure,
			WindSpeed:           cur.WindSpeed10m,
			WindDirection:       cur.WindDirection10m,
			WindGusts:           cur.WindGusts10m,
			Precipitation:       cur.Precipitation,
			Snowfall:            cur.Snowfall,
			CloudCover:          cur.CloudCover,
			WeatherCode:         cur.WeatherCode,
		},
	}, nil
}

func (c *Client) hourlyForecast(ctx context.Context, lat, lon float64) (forecastResult, error) {
	params := url.Values{
		"latitude":  {fmt.Sprintf("%.4f", lat)},
		"longitude": {fmt.Sprintf("%.4f", lon)},
		"hourly": {"temperature_2m,relative_humidity_2m,dew_point_2m," +
			"precipitation,cloud_cover,wind_speed_10m,soil_temperature_0cm"},
		"forecast_hours": {fmt.Sprintf("%d", forecastHours)},
		"timezone":       {"auto"},
	}

	var resp forecastResponse
	if err := c.doRequest(ctx, params, "hourly", &resp); err != nil {
		return forecastResult{}, err
	}

	hourly := resp.Hourly
	hours := make([]domain.ForecastHour, 0, len(hourly.Time))
	for i, timeStr := range hourly.Time {
		hours = append(hours, domain.ForecastHour{
			Time:               timeStr,
			Temperature:        at(hourly.Temperature2m, i),
			Humidity:           at(hourly.RelativeHumidity2m, i),
			DewPoint:           at(hourly.DewPoint2m, i),
			Precipitation:      at(hourly.Precipitation, i),
			CloudCover:         at(hourly.CloudCover, i),
			WindSpeed:          at(hourly.WindSpeed10m, i),
			SoilTemperature0cm: at(hourly.SoilTemperature0cm, i),
		})
	}

	return forecastResult{hours: hours, elevation: resp.Elevation, timezone: resp.Timezone}, nil
}

func (c *Client) doRequest(ctx context.Context, params url.Values, source string, out *forecastResponse) error {
	fullURL := c.baseURL + "/forecast?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s weather request: %w", source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("open-meteo API error: status %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", source, err)
	}
	return nil
}

// at returns the i-th element of a nullable series, nil past its end.
// Open-Meteo pads unknown values with null, so series can be ragged.
func at(series []*float64, i int) *float64 {
	if i >= len(series) {
		return nil
	}
	return series[i]
}

// Open-Meteo API response types.

type forecastResponse struct {
	Elevation float64      `json:"elevation"`
	Timezone  string       `json:"timezone"`
	Current   currentBlock `json:"current"`
	Hourly    hourlyBlock  `json:"hourly"`
}

type currentBlock struct {
	Time                string  `json:"time"`
	Temperature2m       float64 `json:"temperature_2m"`
	ApparentTemperature float64 `json:"apparent_temperature"`
	RelativeHumidity2m  float64 `json:"relative_humidity_2m"`
	PressureMSL         float64 `json:"pressure_msl"`
	SurfacePressure     float64 `json:"surface_pressure"`
	WindSpeed10m        float64 `json:"wind_speed_10m"`
	WindDirection10m    float64 `json:"wind_direction_10m"`
	WindGusts10m        float64 `json:"wind_gusts_10m"`
	Precipitation       float64 `json:"precipitation"`
	Snowfall            float64 `json:"snowfall"`
	CloudCover          float64 `json:"cloud_cover"`
	WeatherCode         int     `json:"weather_code"`
}

type hourlyBlock struct {
	Time               []string   `json:"time"`
	Temperature2m      []*float64 `json:"temperature_2m"`
	RelativeHumidity2m []*float64 `json:"relative_humidity_2m"`
	DewPoint2m         []*float64 `json:"dew_point_2m"`
	Precipitation      []*float64 `json:"precipitation"`
	CloudCover         []*float64 `json:"cloud_cover"`
	WindSpeed10m       []*float64 `json:"wind_speed_10m"`
	SoilTemperature0cm []*float64 `json:"soil_temperature_0cm"`
}
