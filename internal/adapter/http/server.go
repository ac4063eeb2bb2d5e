// Package http exposes the frost analysis REST API.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wayrafrost/frost-alert-service/internal/domain"
	"github.com/wayrafrost/frost-alert-service/internal/predictor"
)

// predictTimeout bounds one analysis request end to end, including the
// generative-AI call.
const predictTimeout = 60 * time.Second

// Server bundles router and dependencies for the REST API.
type Server struct {
	addr            string
	shutdownTimeout time.Duration
	service         *predictor.Service
	engine          *gin.Engine
	logger          *slog.Logger
}

// New constructs a server with routes and middleware.
func New(addr string, shutdownTimeout time.Duration, service *predictor.Service, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	server := &Server{
		addr:            addr,
		shutdownTimeout: shutdownTimeout,
		service:         service,
		engine:          engine,
		logger:          logger,
	}
	server.registerRoutes()
	return server
}

// Engine exposes the underlying gin engine (for tests).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP server and blocks until ctx is cancelled or the
// listener fails.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	s.logger.Info("http server listening", "addr", s.addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/readyz", s.handleReadiness)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.engine.Group("/api")
	api.GET("/station-info", s.handleStationInfo)
	api.GET("/locations", s.handleLocations)
	api.POST("/validate-location", s.handleValidateLocation)
	api.POST("/predict", s.handlePredict)
	api.POST("/send-alert", s.handleSendAlert)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (s *Server) handleReadiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := s.service.CheckReadiness(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) handleStationInfo(c *gin.Context) {
	station := s.service.Station()
	c.JSON(http.StatusOK, gin.H{
		"station": station,
		"coverage_area": gin.H{
			"type": "circle",
			"center": gin.H{
				"latitude":  station.Latitude,
				"longitude": station.Longitude,
			},
			"radius_km": station.ValidRadiusKM,
		},
		"message": fmt.Sprintf(
			"Este modelo de predicción de heladas está entrenado con datos de %s y es válido únicamente para la región de Junín dentro de un radio de %.0f km.",
			station.Name, station.ValidRadiusKM,
		),
	})
}

// curatedLocations are the Junín locations offered in the picker. Huayao
// first: it is the default selection.
var curatedLocations = []domain.Location{
	{Name: "Huayao (Estación LAMAR)", Latitude: -12.0383, Longitude: -75.3228, Elevation: 3350},
	{Name: "Huancayo", Latitude: -12.0653, Longitude: -75.2049, Elevation: 3271},
	{Name: "Chupaca", Latitude: -12.0583, Longitude: -75.2900, Elevation: 3280},
	{Name: "Concepción", Latitude: -11.9167, Longitude: -75.3167, Elevation: 3250},
	{Name: "Jauja", Latitude: -11.7756, Longitude: -75.4961, Elevation: 3352},
}

func (s *Server) handleLocations(c *gin.Context) {
	type annotatedLocation struct {
		domain.Location
		IsValid    bool    `json:"is_valid"`
		DistanceKM float64 `json:"distance_from_station_km"`
	}

	station := s.service.Station()
	locations := make([]annotatedLocation, 0, len(curatedLocations))
	for _, loc := range curatedLocations {
		validation, err := s.service.ValidateLocation(loc.Latitude, loc.Longitude)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		locations = append(locations, annotatedLocation{
			Location:   loc,
			IsValid:    validation.IsValid,
			DistanceKM: validation.DistanceKM,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"locations": locations,
		"default":   locations[0],
		"station":   station,
		"note": fmt.Sprintf(
			"Solo se muestran ubicaciones dentro del radio de %.0f km de la estación",
			station.ValidRadiusKM,
		),
	})
}

// coordinatesRequest binds with pointers so a missing field is a 400, not a
// silent zero coordinate.
type coordinatesRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required"`
	Longitude *float64 `json:"longitude" binding:"required"`
}

func (s *Server) handleValidateLocation(c *gin.Context) {
	var req coordinatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "latitud y longitud requeridas"})
		return
	}

	validation, err := s.service.ValidateLocation(*req.Latitude, *req.Longitude)
	if err != nil {
		s.writeError(c, err)
		return
	}

	station := s.service.Station()
	c.JSON(http.StatusOK, gin.H{
		"is_valid":    validation.IsValid,
		"distance_km": validation.DistanceKM,
		"message":     validation.Message,
		"station": gin.H{
			"name": station.Name,
			"coordinates": gin.H{
				"latitude":  station.Latitude,
				"longitude": station.Longitude,
			},
		},
	})
}

type predictRequest struct {
	Latitude     *float64 `json:"latitude" binding:"required"`
	Longitude    *float64 `json:"longitude" binding:"required"`
	LocationName string   `json:"location_name"`
	PhoneNumber  string   `json:"phone_number"`
}

func (s *Server) handlePredict(c *gin.Context) {
	var req predictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "latitud y longitud requeridas"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), predictTimeout)
	defer cancel()

	outcome, err := s.service.Predict(ctx, predictor.Request{
		Latitude:     *req.Latitude,
		Longitude:    *req.Longitude,
		LocationName: req.LocationName,
		PhoneNumber:  req.PhoneNumber,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	trimForecast(&outcome)
	c.JSON(http.StatusOK, outcome)
}

// responseForecastHours caps the hourly forecast returned to API clients.
// The analysis itself looks two nights ahead; clients display one day.
const responseForecastHours = 24

func trimForecast(outcome *domain.PredictionOutcome) {
	if outcome.Weather != nil && len(outcome.Weather.Forecast) > responseForecastHours {
		outcome.Weather.Forecast = outcome.Weather.Forecast[:responseForecastHours]
	}
}

type sendAlertRequest struct {
	PhoneNumber string                   `json:"phone_number" binding:"required"`
	Prediction  domain.PredictionOutcome `json:"prediction"`
}

func (s *Server) handleSendAlert(c *gin.Context) {
	var req sendAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "número de teléfono requerido"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	receipt, err := s.service.SendAlert(ctx, req.PhoneNumber, req.Prediction)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "receipt": receipt})
}

// writeError maps service errors onto HTTP statuses.
func (s *Server) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, predictor.ErrSuperseded):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrMalformedPrediction),
		errors.Is(err, domain.ErrNotificationFailed):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
