package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/flybeeper/balises-backend/internal/config"
	"github.com/flybeeper/balises-backend/internal/metrics"
	"github.com/flybeeper/balises-backend/internal/models"
	"github.com/flybeeper/balises-backend/pkg/utils"
)

const publishTimeout = 5 * time.Second

// brokerClient часть mqtt.Client, нужная публикатору
type brokerClient interface {
	Connect() mqtt.Token
	Disconnect(quiesce uint)
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Publisher публикует измененные наблюдения в MQTT брокер
type Publisher struct {
	client    brokerClient
	config    *config.MQTTConfig
	logger    *utils.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
	mu        sync.RWMutex
}

// NewPublisher создает новый MQTT публикатор
func NewPublisher(cfg *config.MQTTConfig, logger *utils.Logger) (*Publisher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	p := newPublisher(nil, cfg, logger)

	// Настройка MQTT клиента
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.URL)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(cfg.CleanSession)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	// Callback при подключении
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		p.setConnected(true)
		p.logger.WithField("broker", cfg.URL).Info("Connected to MQTT broker")
	})

	// Callback при потере соединения
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		p.setConnected(false)
		p.logger.WithField("error", err).Warn("Lost connection to MQTT broker")
	})

	p.client = mqtt.NewClient(opts)

	return p, nil
}

func newPublisher(client brokerClient, cfg *config.MQTTConfig, logger *utils.Logger) *Publisher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Publisher{
		client: client,
		config: cfg,
		logger: logger.WithField("component", "mqtt"),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (p *Publisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()

	if v {
		metrics.MQTTConnectionStatus.Set(1)
	} else {
		metrics.MQTTConnectionStatus.Set(0)
	}
}

// Connect подключается к MQTT брокеру
func (p *Publisher) Connect() error {
	p.logger.WithField("broker", p.config.URL).Info("Connecting to MQTT broker")

	token := p.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	// Ждем подтверждения подключения
	timeout := time.After(10 * time.Second)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			return fmt.Errorf("connection timeout")
		case <-ticker.C:
			if p.IsConnected() {
				return nil
			}
		case <-p.ctx.Done():
			return p.ctx.Err()
		}
	}
}

// Disconnect отключается от MQTT брокера
func (p *Publisher) Disconnect() {
	p.logger.Info("Disconnecting from MQTT broker")

	p.cancel()

	if p.client.IsConnected() {
		p.client.Disconnect(1000) // 1 секунда на graceful disconnect
	}
	p.setConnected(false)
}

// IsConnected проверяет статус подключения
func (p *Publisher) IsConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connected && p.client.IsConnected()
}

// Topic топик наблюдения станции: <prefix>/<provider>/<stationID>
func Topic(prefix, providerName, stationID string) string {
	parts := make([]string, 0, 3)
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		parts = append(parts, prefix)
	}
	parts = append(parts, topicSegment(providerName), topicSegment(stationID))
	return strings.Join(parts, "/")
}

// topicSegment убирает из сегмента символы с особым смыслом в MQTT
func topicSegment(s string) string {
	return strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(s)
}

// PublishReadings публикует каждое наблюдение JSON-сообщением.
// Сигнатура совпадает с service.ChangeListener.
func (p *Publisher) PublishReadings(providerName string, readings []*models.Reading) {
	if len(readings) == 0 {
		return
	}
	if !p.IsConnected() {
		p.logger.WithField("count", len(readings)).Warn("MQTT not connected, dropping readings")
		metrics.MQTTPublishErrors.Add(float64(len(readings)))
		return
	}

	type pending struct {
		topic string
		token mqtt.Token
	}
	tokens := make([]pending, 0, len(readings))

	for _, r := range readings {
		payload, err := json.Marshal(r)
		if err != nil {
			metrics.MQTTPublishErrors.Inc()
			p.logger.WithFields(map[string]interface{}{
				"station": r.ID(),
				"error":   err,
			}).Error("Failed to encode reading")
			continue
		}
		topic := Topic(p.config.TopicPrefix, providerName, r.ID())
		tokens = append(tokens, pending{topic: topic, token: p.client.Publish(topic, p.config.QoS, p.config.Retained, payload)})
	}

	published := 0
	for _, t := range tokens {
		if !t.token.WaitTimeout(publishTimeout) {
			metrics.MQTTPublishErrors.Inc()
			p.logger.WithField("topic", t.topic).Warn("MQTT publish timed out")
			continue
		}
		if err := t.token.Error(); err != nil {
			metrics.MQTTPublishErrors.Inc()
			p.logger.WithFields(map[string]interface{}{
				"topic": t.topic,
				"error": err,
			}).Error("Failed to publish reading")
			continue
		}
		published++
	}

	metrics.MQTTMessagesPublished.WithLabelValues(providerName).Add(float64(published))
	p.logger.WithFields(map[string]interface{}{
		"provider":  providerName,
		"published": published,
	}).Debug("Published readings to MQTT")
}
