package mqtt

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flybeeper/balises-backend/internal/config"
	"github.com/flybeeper/balises-backend/internal/models"
	"github.com/flybeeper/balises-backend/pkg/utils"
)

type fakeToken struct {
	err  error
	done chan struct{}
}

func newFakeToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeBroker struct {
	mu        sync.Mutex
	connected bool
	failTopic string
	messages  []published
}

func (b *fakeBroker) Connect() mqtt.Token {
	b.connected = true
	return newFakeToken(nil)
}

func (b *fakeBroker) Disconnect(uint) { b.connected = false }

func (b *fakeBroker) IsConnected() bool { return b.connected }

func (b *fakeBroker) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	if topic == b.failTopic {
		return newFakeToken(errors.New("broker rejected"))
	}
	b.messages = append(b.messages, published{topic, qos, retained, payload.([]byte)})
	return newFakeToken(nil)
}

func testConfig() *config.MQTTConfig {
	return &config.MQTTConfig{
		URL:         "tcp://localhost:1883",
		ClientID:    "test",
		TopicPrefix: "balises/",
		QoS:         1,
		Retained:    true,
	}
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "balises/romma/12", Topic("balises", "romma", "12"))
	assert.Equal(t, "balises/romma/12", Topic("/balises/", "romma", "12"))
	assert.Equal(t, "romma/a_b_c_", Topic("", "romma", "a/b+c#"))
}

func TestPublisher_PublishReadings(t *testing.T) {
	broker := &fakeBroker{failTopic: "balises/romma/S2"}
	p := newPublisher(broker, testConfig(), utils.NopLogger())
	broker.connected = true
	p.setConnected(true)

	r1 := models.NewReading("S1")
	r1.Date = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r1.WindAvg = models.Float(12.5)

	p.PublishReadings("romma", []*models.Reading{r1, models.NewReading("S2")})

	require.Len(t, broker.messages, 1)
	msg := broker.messages[0]
	assert.Equal(t, "balises/romma/S1", msg.topic)
	assert.Equal(t, byte(1), msg.qos)
	assert.True(t, msg.retained)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.payload, &body))
	assert.Equal(t, "S1", body["id"])
	assert.Equal(t, 12.5, body["wind_avg"])
}

func TestPublisher_DropsWhenDisconnected(t *testing.T) {
	broker := &fakeBroker{}
	p := newPublisher(broker, testConfig(), utils.NopLogger())

	p.PublishReadings("romma", []*models.Reading{models.NewReading("S1")})

	assert.Empty(t, broker.messages)
	assert.False(t, p.IsConnected())
}

func TestPublisher_Disconnect(t *testing.T) {
	broker := &fakeBroker{connected: true}
	p := newPublisher(broker, testConfig(), utils.NopLogger())
	p.setConnected(true)
	require.True(t, p.IsConnected())

	p.Disconnect()

	assert.False(t, broker.connected)
	assert.False(t, p.IsConnected())
}
