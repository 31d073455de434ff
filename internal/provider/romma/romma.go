// Package romma источник данных сети метеостанций ROMMA (XML фиды).
package romma

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/flybeeper/balises-backend/internal/metrics"
	"github.com/flybeeper/balises-backend/internal/models"
	"github.com/flybeeper/balises-backend/internal/provider"
	"github.com/flybeeper/balises-backend/pkg/utils"
)

const (
	stationsPath = "/stations_romma_xml.php"
	readingsPath = "/releves_romma_xml.php"
	detailPath   = "/station_24.php"
	historyPath  = "/station_24_graphe.php"

	zippedSuffix = ".gz"

	// Ограничение размера фида после распаковки
	defaultMaxFeedSize = 32 << 20
)

var (
	errUnexpectedStatus = errors.New("unexpected status code")
	errCircuitOpen      = errors.New("circuit breaker open")
	errFeedTooLarge     = errors.New("feed too large")
)

// Config настройки источника
type Config struct {
	Name        string
	Country     string
	BaseURL     string
	Key         string
	Zipped      bool
	Timeout     time.Duration
	MinInterval time.Duration // Минимальный интервал между запросами к ROMMA
}

// Provider источник ROMMA
type Provider struct {
	cfg     Config
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	logger  *utils.Logger

	maxFeedSize int64
}

var _ provider.Provider = (*Provider)(nil)

// New создает источник. client == nil означает клиент с таймаутом cfg.Timeout.
func New(cfg Config, client *http.Client, logger *utils.Logger) (*Provider, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("provider name is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.Country = strings.ToUpper(cfg.Country)

	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}

	p := &Provider{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.WithField("provider", cfg.Name),

		maxFeedSize: defaultMaxFeedSize,
	}

	p.circuit = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Interval:    5 * time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.ProviderCircuitState.WithLabelValues(name).Set(float64(to))
			p.logger.WithFields(map[string]interface{}{
				"from": from.String(),
				"to":   to.String(),
			}).Warn("Provider circuit breaker state changed")
		},
	})
	metrics.ProviderCircuitState.WithLabelValues(cfg.Name).Set(float64(gobreaker.StateClosed))

	return p, nil
}

func (p *Provider) Name() string { return p.cfg.Name }
func (p *Provider) Country() string { return p.cfg.Country }

func (p *Provider) NewStation() *models.Station { return &models.Station{} }
func (p *Provider) NewReading() *models.Reading { return &models.Reading{} }

// FilterErrorMessage прячет ключ ROMMA
func (p *Provider) FilterErrorMessage(msg string) string {
	if p.cfg.Key == "" {
		return msg
	}
	return strings.ReplaceAll(msg, p.cfg.Key, "xxx")
}

// StationDetailURL страница станции на сайте ROMMA
func (p *Provider) StationDetailURL(id string) string {
	return p.cfg.BaseURL + detailPath + "?id=" + url.QueryEscape(id)
}

// StationHistoryURL страница графиков станции на сайте ROMMA
func (p *Provider) StationHistoryURL(id string) string {
	return p.cfg.BaseURL + historyPath + "?id=" + url.QueryEscape(id)
}

func (p *Provider) feedURL(path string) string {
	return p.cfg.BaseURL + path + "?id=" + url.QueryEscape(p.cfg.Key)
}

// IsAvailable проверяет, что сервер ROMMA отвечает на запрос списка станций
func (p *Provider) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.feedURL(stationsPath), nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.WithField("error", p.FilterErrorMessage(err.Error())).Debug("ROMMA unavailable")
		return false
	}
	resp.Body.Close()
	return true
}

// FetchStations загружает список станций
func (p *Provider) FetchStations(ctx context.Context) ([]*models.Station, error) {
	body, err := p.fetch(ctx, stationsPath)
	if err != nil {
		return nil, err
	}

	stations, err := p.parseStations(bytes.NewReader(body), time.Now().UTC())
	if err != nil {
		return nil, p.redact(fmt.Errorf("failed to parse stations: %w", err))
	}
	return stations, nil
}

// FetchReadings загружает последние наблюдения
func (p *Provider) FetchReadings(ctx context.Context) (map[string]*models.Reading, error) {
	body, err := p.fetch(ctx, readingsPath)
	if err != nil {
		return nil, err
	}

	readings, err := p.parseReadings(bytes.NewReader(body))
	if err != nil {
		return nil, p.redact(fmt.Errorf("failed to parse readings: %w", err))
	}
	return readings, nil
}

// fetch скачивает фид (при необходимости сжатый) и возвращает распакованное тело
func (p *Provider) fetch(ctx context.Context, path string) ([]byte, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	target := p.feedURL(path)
	if p.cfg.Zipped {
		// Сжатый вариант фида: к полному URL добавляется суффикс
		target += zippedSuffix
	}

	result, err := p.circuit.Execute(func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		resp, err := p.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: %d", errUnexpectedStatus, resp.StatusCode)
		}

		var r io.Reader = resp.Body
		if p.cfg.Zipped {
			zr, err := gzip.NewReader(resp.Body)
			if err != nil {
				return nil, fmt.Errorf("failed to decompress feed: %w", err)
			}
			defer zr.Close()
			r = zr
		}

		body, err := io.ReadAll(io.LimitReader(r, p.maxFeedSize+1))
		if err != nil {
			return nil, err
		}
		if int64(len(body)) > p.maxFeedSize {
			return nil, fmt.Errorf("%w: more than %d bytes", errFeedTooLarge, p.maxFeedSize)
		}
		return body, nil
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
	}
	if err != nil {
		return nil, p.redact(fmt.Errorf("failed to fetch %s: %w", path, err))
	}

	return result.([]byte), nil
}

// redactedError скрывает ключ в тексте, сохраняя цепочку ошибок
type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }

func (p *Provider) redact(err error) error {
	return &redactedError{msg: p.FilterErrorMessage(err.Error()), err: err}
}
