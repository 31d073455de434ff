package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/flybeeper/balises-backend/internal/models"
	"github.com/flybeeper/balises-backend/internal/provider"
	"github.com/flybeeper/balises-backend/internal/service"
	"github.com/flybeeper/balises-backend/pkg/utils"
)

const maxRadiusKm = 500

// Source рабочий набор, который отдает API. Реализуется service.Refresher.
type Source interface {
	Provider() provider.Provider
	Stations() []*models.Station
	StationsNear(center models.GeoPoint, radiusKm float64) []*models.Station
	Station(id string) (*models.Station, bool)
	Readings() []*models.Reading
	Changed() []*models.Reading
	Reading(id string) (*models.Reading, bool)
	Status() service.Status
}

// RESTHandler обработчик REST API endpoints
type RESTHandler struct {
	source Source
	logger *utils.Logger
}

// NewRESTHandler создает новый REST handler
func NewRESTHandler(source Source, logger *utils.Logger) *RESTHandler {
	return &RESTHandler{
		source: source,
		logger: logger,
	}
}

// GetStations возвращает станции, все или в радиусе
// GET /api/v1/stations?lat=45.2&lon=5.7&radius=50
func (h *RESTHandler) GetStations(c *gin.Context) {
	if c.Query("lat") == "" && c.Query("lon") == "" && c.Query("radius") == "" {
		h.respondStations(c, h.source.Stations())
		return
	}

	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil || lat < -90 || lat > 90 {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "invalid_latitude",
			"message": "Latitude must be between -90 and 90",
		})
		return
	}

	lon, err := strconv.ParseFloat(c.Query("lon"), 64)
	if err != nil || lon < -180 || lon > 180 {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "invalid_longitude",
			"message": "Longitude must be between -180 and 180",
		})
		return
	}

	radius, err := strconv.ParseFloat(c.Query("radius"), 64)
	if err != nil || radius <= 0 || radius > maxRadiusKm {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "invalid_radius",
			"message": "Radius must be between 0 and 500 km",
		})
		return
	}

	center := models.GeoPoint{Latitude: lat, Longitude: lon}
	h.respondStations(c, h.source.StationsNear(center, radius))
}

func (h *RESTHandler) respondStations(c *gin.Context, stations []*models.Station) {
	if stations == nil {
		stations = []*models.Station{}
	}
	c.JSON(http.StatusOK, gin.H{
		"provider": h.source.Provider().Name(),
		"count":    len(stations),
		"stations": stations,
	})
}

// GetStation возвращает станцию и ссылки на ее страницы у источника
// GET /api/v1/stations/:id
func (h *RESTHandler) GetStation(c *gin.Context) {
	id := c.Param("id")
	station, ok := h.source.Station(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "station_not_found",
			"message": "Station not found",
		})
		return
	}

	p := h.source.Provider()
	resp := gin.H{
		"station":     station,
		"detail_url":  p.StationDetailURL(id),
		"history_url": p.StationHistoryURL(id),
	}
	if reading, ok := h.source.Reading(id); ok {
		resp["reading"] = reading
	}
	c.JSON(http.StatusOK, resp)
}

// GetReadings возвращает последние наблюдения всех станций
// GET /api/v1/readings
func (h *RESTHandler) GetReadings(c *gin.Context) {
	h.respondReadings(c, h.source.Readings())
}

// GetChangedReadings возвращает наблюдения, измененные последним обновлением
// GET /api/v1/readings/changed
func (h *RESTHandler) GetChangedReadings(c *gin.Context) {
	h.respondReadings(c, h.source.Changed())
}

func (h *RESTHandler) respondReadings(c *gin.Context, readings []*models.Reading) {
	c.JSON(http.StatusOK, gin.H{
		"provider": h.source.Provider().Name(),
		"count":    len(readings),
		"readings": readings,
	})
}

// GetReading возвращает последнее наблюдение станции
// GET /api/v1/readings/:id
func (h *RESTHandler) GetReading(c *gin.Context) {
	reading, ok := h.source.Reading(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "reading_not_found",
			"message": "No reading for this station",
		})
		return
	}
	c.JSON(http.StatusOK, reading)
}
