package events

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

// fakeBroker is an in-process mqtt.Client delivering publishes to matching
// subscriptions synchronously.
type fakeBroker struct {
	mu           sync.Mutex
	subs         map[string]mqtt.MessageHandler
	published    []fakeMessage
	unsubscribed []string
	disconnected bool
	publishErr   error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{subs: map[string]mqtt.MessageHandler{}}
}

func matches(filter, topic string) bool {
	f, t := strings.Split(filter, "/"), strings.Split(topic, "/")
	if len(f) != len(t) {
		return false
	}
	for i := range f {
		if f[i] != "+" && f[i] != t[i] {
			return false
		}
	}
	return true
}

func (b *fakeBroker) IsConnected() bool      { return true }
func (b *fakeBroker) IsConnectionOpen() bool { return true }
func (b *fakeBroker) Connect() mqtt.Token    { return doneToken{} }
func (b *fakeBroker) Disconnect(uint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disconnected = true
}

func (b *fakeBroker) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	b.mu.Lock()
	if b.publishErr != nil {
		b.mu.Unlock()
		return doneToken{err: b.publishErr}
	}
	msg := fakeMessage{topic: topic, payload: payload.([]byte)}
	b.published = append(b.published, msg)
	var handlers []mqtt.MessageHandler
	for filter, h := range b.subs {
		if matches(filter, topic) {
			handlers = append(handlers, h)
		}
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(b, msg)
	}
	return doneToken{}
}

func (b *fakeBroker) Subscribe(topic string, _ byte, callback mqtt.MessageHandler) mqtt.Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[topic] = callback
	return doneToken{}
}

func (b *fakeBroker) SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token {
	for topic := range filters {
		b.Subscribe(topic, 0, callback)
	}
	return doneToken{}
}

func (b *fakeBroker) Unsubscribe(topics ...string) mqtt.Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range topics {
		delete(b.subs, t)
	}
	b.unsubscribed = append(b.unsubscribed, topics...)
	return doneToken{}
}

func (b *fakeBroker) AddRoute(topic string, callback mqtt.MessageHandler) {
	b.Subscribe(topic, 0, callback)
}

func (b *fakeBroker) OptionsReader() mqtt.ClientOptionsReader { return mqtt.ClientOptionsReader{} }

// reconnect drops every subscription, as a broker does for a clean session.
func (b *fakeBroker) reconnect() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = map[string]mqtt.MessageHandler{}
}

func (b *fakeBroker) deliver(topic, payload string) {
	b.mu.Lock()
	var handlers []mqtt.MessageHandler
	for filter, h := range b.subs {
		if matches(filter, topic) {
			handlers = append(handlers, h)
		}
	}
	b.mu.Unlock()
	for _, h := range handlers {
		h(b, fakeMessage{topic: topic, payload: []byte(payload)})
	}
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "cabtrips/trips/TB1/status", StatusTopic("TB1"))

	id, ok := TripFromTopic("cabtrips/trips/TB1/status")
	assert.True(t, ok)
	assert.Equal(t, "TB1", id)

	for _, bad := range []string{"cabtrips/trips//status", "cabtrips/trips/a/b/status", "other/TB1/status", "cabtrips/trips/TB1"} {
		_, ok := TripFromTopic(bad)
		assert.False(t, ok, bad)
	}
}

func TestDecode(t *testing.T) {
	ev, err := Decode("cabtrips/trips/TB7/status", []byte(`{"tripBookingId":"other","status":"COMPLETED","at":"2024-03-15T12:00:00Z"}`))
	require.NoError(t, err)
	assert.Equal(t, "TB7", ev.TripID)
	assert.Equal(t, "COMPLETED", ev.Status)
	assert.True(t, ev.At.Equal(time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)))

	_, err = Decode("cabtrips/trips/TB7/status", []byte(`{`))
	assert.Error(t, err)
	_, err = Decode("cabtrips/trips/TB7/status", []byte(`{"at":"2024-03-15T12:00:00Z"}`))
	assert.Error(t, err)
	_, err = Decode("elsewhere", []byte(`{"status":"COMPLETED"}`))
	assert.Error(t, err)
}

func TestMQTTBus_PublishSubscribe(t *testing.T) {
	broker := newFakeBroker()
	bus := NewMQTTBus(broker, Options{QoS: 1, Timeout: time.Second})

	var got []StatusEvent
	require.NoError(t, bus.SubscribeStatus(func(ev StatusEvent) { got = append(got, ev) }))

	at := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	require.NoError(t, bus.PublishStatus(context.Background(), StatusEvent{TripID: "TB1", Status: "ACCEPTED", At: at}))
	broker.deliver("cabtrips/trips/TB2/status", "not json")

	require.Len(t, got, 1)
	assert.Equal(t, "TB1", got[0].TripID)
	assert.Equal(t, "ACCEPTED", got[0].Status)
	assert.Equal(t, "cabtrips/trips/TB1/status", broker.published[0].topic)

	assert.Error(t, bus.PublishStatus(context.Background(), StatusEvent{Status: "ACCEPTED"}))
}

func TestMQTTBus_PublishError(t *testing.T) {
	broker := newFakeBroker()
	broker.publishErr = errors.New("not connected")
	bus := NewMQTTBus(broker, Options{})

	err := bus.PublishStatus(context.Background(), StatusEvent{TripID: "TB1", Status: "ACCEPTED"})

	assert.EqualError(t, err, "not connected")
}

func TestMQTTBus_Close(t *testing.T) {
	broker := newFakeBroker()
	bus := NewMQTTBus(broker, Options{})
	require.NoError(t, bus.SubscribeStatus(func(StatusEvent) {}))

	bus.Close()
	bus.Close()

	assert.True(t, broker.disconnected)
	assert.Equal(t, []string{StatusWildcard}, broker.unsubscribed)
	assert.ErrorIs(t, bus.PublishStatus(context.Background(), StatusEvent{TripID: "TB1", Status: "x"}), ErrClosed)
	assert.ErrorIs(t, bus.SubscribeStatus(func(StatusEvent) {}), ErrClosed)
}

func TestMQTTBus_ResubscribesAfterReconnect(t *testing.T) {
	broker := newFakeBroker()
	bus := NewMQTTBus(broker, Options{Timeout: time.Second})

	var got []string
	require.NoError(t, bus.SubscribeStatus(func(ev StatusEvent) { got = append(got, ev.TripID) }))

	broker.reconnect()
	broker.deliver("cabtrips/trips/TB1/status", `{"status":"ACCEPTED"}`)
	assert.Empty(t, got)

	bus.Resubscribe(broker)
	broker.deliver("cabtrips/trips/TB2/status", `{"status":"STARTED"}`)
	assert.Equal(t, []string{"TB2"}, got)
}

func TestMQTTBus_ResubscribeAfterCloseDoesNothing(t *testing.T) {
	broker := newFakeBroker()
	bus := NewMQTTBus(broker, Options{})
	require.NoError(t, bus.SubscribeStatus(func(StatusEvent) {}))
	bus.Close()

	bus.Resubscribe(broker)

	assert.Empty(t, broker.subs)
}

func TestNew_WithoutBrokerIsNoop(t *testing.T) {
	bus, err := New(Options{})
	require.NoError(t, err)
	assert.IsType(t, Noop{}, bus)
	assert.NoError(t, bus.PublishStatus(context.Background(), StatusEvent{TripID: "TB1"}))
	assert.NoError(t, bus.SubscribeStatus(func(StatusEvent) {}))
	bus.Close()
}
