package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/immiframe/internal/config"
	"github.com/timmy/immiframe/internal/domain"
)

func sample() *Notification {
	return &Notification{
		RunID:     "run-1",
		Status:    domain.RunStatusPartial,
		Theme:     "beach",
		Requested: 5,
		Cached:    4,
		Files:     []string{"photo_1.jpg"},
		Timestamp: time.Unix(1700000000, 0).UTC(),
	}
}

type recordingSink struct {
	name  string
	err   error
	calls int
}

func (r *recordingSink) Name() string { return r.name }
func (r *recordingSink) Notify(context.Context, *Notification) error {
	r.calls++
	return r.err
}

func TestMultiContinuesPastFailures(t *testing.T) {
	a := &recordingSink{name: "a", err: errors.New("down")}
	b := &recordingSink{name: "b"}
	m := NewMulti(a, b)

	err := m.Notify(context.Background(), sample())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a: down")
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
	assert.Equal(t, 2, m.Len())

	assert.NoError(t, NewMulti().Notify(context.Background(), sample()))
}

func TestMessage(t *testing.T) {
	n := sample()
	assert.Equal(t, `Photo frame updated: "beach" (4 of 5 photos)`, n.Message())
	n.Status = domain.RunStatusSuccess
	assert.Equal(t, `Photo frame updated: "beach" (4 photos)`, n.Message())
}

type fakeSetter struct {
	entity, value string
}

func (f *fakeSetter) SetInputText(_ context.Context, entity, value string) error {
	f.entity, f.value = entity, value
	return nil
}

func TestHomeAssistantSink(t *testing.T) {
	f := &fakeSetter{}
	require.NoError(t, NewHomeAssistantSink(f, "input_text.immich_theme").Notify(context.Background(), sample()))
	assert.Equal(t, "input_text.immich_theme", f.entity)
	assert.Equal(t, "beach", f.value)
}

// fakeToken completes immediately.
type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

// fakeClient implements the parts of mqtt.Client the sink uses.
type fakeClient struct {
	mqtt.Client
	mu        sync.Mutex
	connected bool
	connects  int
	topic     string
	qos       byte
	retained  bool
	payload   []byte
}

func (c *fakeClient) IsConnected() bool { return c.connected }
func (c *fakeClient) Connect() mqtt.Token {
	c.connects++
	c.connected = true
	return &fakeToken{}
}
func (c *fakeClient) Disconnect(uint) { c.connected = false }
func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topic, c.qos, c.retained = topic, qos, retained
	c.payload = payload.([]byte)
	return &fakeToken{}
}

func TestMQTTSink(t *testing.T) {
	fc := &fakeClient{}
	s := NewMQTTSink(config.MQTTConfig{Broker: "tcp://broker:1883", ClientID: "t", Topic: "frame/theme", QoS: 1, Retain: true})
	s.newClient = func(*mqtt.ClientOptions) mqtt.Client { return fc }

	require.NoError(t, s.Notify(context.Background(), sample()))
	require.NoError(t, s.Notify(context.Background(), sample()))

	assert.Equal(t, 1, fc.connects, "connection is reused")
	assert.Equal(t, "frame/theme", fc.topic)
	assert.Equal(t, byte(1), fc.qos)
	assert.True(t, fc.retained)

	var got Notification
	require.NoError(t, json.Unmarshal(fc.payload, &got))
	assert.Equal(t, "beach", got.Theme)
	assert.Equal(t, domain.RunStatusPartial, got.Status)

	s.Close()
	assert.False(t, fc.connected)
}

type fakeSender struct {
	message string
	title   string
	errs    []error
}

func (f *fakeSender) Send(message string, params *stypes.Params) []error {
	f.message = message
	f.title, _ = params.Title()
	return f.errs
}

func TestShoutrrrSink(t *testing.T) {
	fs := &fakeSender{}
	s := &ShoutrrrSink{sender: fs}
	require.NoError(t, s.Notify(context.Background(), sample()))
	assert.Equal(t, sample().Message(), fs.message)
	assert.Equal(t, "immiframe", fs.title)

	fs.errs = []error{nil, errors.New("403")}
	assert.Error(t, s.Notify(context.Background(), sample()))

	_, err := NewShoutrrrSink([]string{"definitely-not-a-service://x"}, time.Second)
	assert.Error(t, err)
	_, err = NewShoutrrrSink(nil, time.Second)
	assert.Error(t, err)
}

func TestFromConfig(t *testing.T) {
	m, err := FromConfig(config.NotifyConfig{
		HomeAssistant: config.HomeAssistantNotify{Enabled: true, EntityID: "input_text.x"},
		MQTT:          config.MQTTConfig{Enabled: true, Broker: "tcp://b:1883", Topic: "t"},
	}, &fakeSetter{})
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len())
}
