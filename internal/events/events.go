// Package events carries trip status changes between the development backend
// and the trip view API over MQTT.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

const (
	topicPrefix = "cabtrips/trips/"
	topicSuffix = "/status"

	// StatusWildcard matches the status topic of every trip.
	StatusWildcard = topicPrefix + "+" + topicSuffix
)

var ErrClosed = errors.New("event bus closed")

// StatusEvent reports that a trip reached a backend status.
type StatusEvent struct {
	TripID string    `json:"tripBookingId"`
	Status string    `json:"status"`
	At     time.Time `json:"at"`
}

// StatusTopic is the topic status events of tripID are published on.
func StatusTopic(tripID string) string {
	return topicPrefix + tripID + topicSuffix
}

// TripFromTopic extracts the trip id of a status topic.
func TripFromTopic(topic string) (string, bool) {
	if !strings.HasPrefix(topic, topicPrefix) || !strings.HasSuffix(topic, topicSuffix) {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(topic, topicPrefix), topicSuffix)
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// Handler receives decoded status events.
type Handler func(StatusEvent)

// Bus publishes and subscribes to status events.
type Bus interface {
	PublishStatus(ctx context.Context, ev StatusEvent) error
	SubscribeStatus(h Handler) error
	Close()
}

// Options configures an MQTT bus.
type Options struct {
	Broker   string
	ClientID string
	QoS      byte
	Timeout  time.Duration
}

// New connects to the configured broker. Without a broker it returns a bus
// that drops every event.
func New(opts Options) (Bus, error) {
	if opts.Broker == "" {
		log.Info("No MQTT broker configured, trip status events disabled")
		return Noop{}, nil
	}
	bus := &MQTTBus{qos: opts.QoS, timeout: timeoutOr(opts.Timeout), subs: map[string]mqtt.MessageHandler{}}
	co := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(10 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.WithError(err).Warn("MQTT connection lost")
		}).
		SetOnConnectHandler(func(c mqtt.Client) {
			log.WithField("broker", opts.Broker).Info("Connected to MQTT broker")
			// Clean sessions drop subscriptions on reconnect.
			bus.Resubscribe(c)
		})

	bus.client = mqtt.NewClient(co)
	token := bus.client.Connect()
	if !token.WaitTimeout(timeoutOr(opts.Timeout)) {
		return nil, fmt.Errorf("connect to %s: timed out", opts.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", opts.Broker, err)
	}
	return bus, nil
}

func timeoutOr(d time.Duration) time.Duration {
	if d <= 0 {
		return 5 * time.Second
	}
	return d
}

// MQTTBus is a Bus over a connected paho client.
type MQTTBus struct {
	client  mqtt.Client
	qos     byte
	timeout time.Duration

	mu     sync.Mutex
	subs   map[string]mqtt.MessageHandler
	closed bool
}

// NewMQTTBus wraps an already connected client.
func NewMQTTBus(client mqtt.Client, opts Options) *MQTTBus {
	return &MQTTBus{
		client:  client,
		qos:     opts.QoS,
		timeout: timeoutOr(opts.Timeout),
		subs:    map[string]mqtt.MessageHandler{},
	}
}

// PublishStatus publishes ev on the trip's status topic.
func (b *MQTTBus) PublishStatus(ctx context.Context, ev StatusEvent) error {
	if ev.TripID == "" {
		return errors.New("status event without trip id")
	}
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrClosed
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal status event: %w", err)
	}
	token := b.client.Publish(StatusTopic(ev.TripID), b.qos, false, payload)
	return b.wait(ctx, token)
}

// SubscribeStatus delivers the status events of every trip to h. Malformed
// messages are logged and dropped.
func (b *MQTTBus) SubscribeStatus(h Handler) error {
	cb := func(_ mqtt.Client, msg mqtt.Message) {
		ev, err := Decode(msg.Topic(), msg.Payload())
		if err != nil {
			log.WithError(err).WithField("topic", msg.Topic()).Warn("Dropping malformed status event")
			return
		}
		h(ev)
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.subs[StatusWildcard] = cb
	b.mu.Unlock()

	return b.wait(context.Background(), b.client.Subscribe(StatusWildcard, b.qos, cb))
}

// Resubscribe re-issues every subscription on c. It runs after each
// (re)connect.
func (b *MQTTBus) Resubscribe(c mqtt.Client) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	subs := make(map[string]mqtt.MessageHandler, len(b.subs))
	for topic, cb := range b.subs {
		subs[topic] = cb
	}
	b.mu.Unlock()

	for topic, cb := range subs {
		if err := b.wait(context.Background(), c.Subscribe(topic, b.qos, cb)); err != nil {
			log.WithError(err).WithField("topic", topic).Error("Failed to restore MQTT subscription")
			continue
		}
		log.WithField("topic", topic).Debug("Restored MQTT subscription")
	}
}

func (b *MQTTBus) wait(ctx context.Context, token mqtt.Token) error {
	timer := time.NewTimer(b.timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errors.New("mqtt operation timed out")
	}
}

// Close unsubscribes and disconnects. Further calls do nothing.
func (b *MQTTBus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	topics := make([]string, 0, len(b.subs))
	for topic := range b.subs {
		topics = append(topics, topic)
	}
	b.mu.Unlock()

	if len(topics) > 0 {
		b.client.Unsubscribe(topics...).WaitTimeout(b.timeout)
	}
	b.client.Disconnect(250)
}

// Decode parses a status message. The trip id in the topic wins over a
// missing or mismatched one in the payload.
func Decode(topic string, payload []byte) (StatusEvent, error) {
	id, ok := TripFromTopic(topic)
	if !ok {
		return StatusEvent{}, fmt.Errorf("not a status topic: %q", topic)
	}
	var ev StatusEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return StatusEvent{}, fmt.Errorf("decode status event: %w", err)
	}
	if ev.Status == "" {
		return StatusEvent{}, errors.New("status event without status")
	}
	ev.TripID = id
	return ev, nil
}

// Noop drops every event.
type Noop struct{}

func (Noop) PublishStatus(context.Context, StatusEvent) error { return nil }
func (Noop) SubscribeStatus(Handler) error                     { return nil }
func (Noop) Close()                                            {}
