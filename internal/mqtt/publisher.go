package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"airquality/internal/config"
	"airquality/internal/modules/airquality/types"
)

const (
	qos            = 1
	publishTimeout = 5 * time.Second
)

// ErrNotConnected is returned when publishing before Connect succeeded.
var ErrNotConnected = errors.New("mqtt client not connected")

// DailyMessage is the retained payload published per calendar date.
type DailyMessage struct {
	RunID       string    `json:"run_id"`
	Source      string    `json:"source"`
	Date        string    `json:"date"`
	CO          float64   `json:"co"`
	Benzene     float64   `json:"c6h6"`
	NOx         float64   `json:"nox"`
	NO2         float64   `json:"no2"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	Count       int       `json:"count"`
	PublishedAt time.Time `json:"published_at"`
}

// Manifest is the retained payload on the base topic describing the last run.
type Manifest struct {
	RunID       string    `json:"run_id"`
	Source      string    `json:"source"`
	Days        int       `json:"days"`
	From        string    `json:"from,omitempty"`
	To          string    `json:"to,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// Batch is what one publish run sends.
type Batch struct {
	RunID  string
	Source string
	Daily  []types.DailyAggregate
}

// Messages returns the per-day topics and payloads followed by the manifest.
func (b Batch) Messages(baseTopic string, now time.Time) ([]Message, error) {
	source := filepath.Base(b.Source)
	out := make([]Message, 0, len(b.Daily)+1)
	for _, d := range b.Daily {
		payload, err := json.Marshal(DailyMessage{
			RunID:       b.RunID,
			Source:      source,
			Date:        d.DateString(),
			CO:          d.CO,
			Benzene:     d.Benzene,
			NOx:         d.NOx,
			NO2:         d.NO2,
			Temperature: d.Temperature,
			Humidity:    d.Humidity,
			Count:       d.Count,
			PublishedAt: now,
		})
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", d.DateString(), err)
		}
		out = append(out, Message{Topic: baseTopic + "/" + d.DateString(), Payload: payload})
	}

	m := Manifest{RunID: b.RunID, Source: source, Days: len(b.Daily), PublishedAt: now}
	if n := len(b.Daily); n > 0 {
		m.From = b.Daily[0].DateString()
		m.To = b.Daily[n-1].DateString()
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return append(out, Message{Topic: baseTopic, Payload: payload}), nil
}

// Message is one retained publish.
type Message struct {
	Topic   string
	Payload []byte
}

type Publisher struct {
	client    mqtt.Client
	topic     string
	broker    string
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewPublisher(cfg config.Config, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Publisher{
		topic:  cfg.MQTTTopic,
		broker: fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort),
		logger: logger,
		stopCh: make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(p.broker)
	opts.SetClientID(cfg.MQTTClientID)
	if cfg.MQTTUsername != "" {
		opts.SetUsername(cfg.MQTTUsername)
		opts.SetPassword(cfg.MQTTPassword)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		p.setConnected(true)
		logger.Info("mqtt connected", "broker", p.broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		p.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	p.client = mqtt.NewClient(opts)
	return p
}

// Connect waits for the initial connection. It respects ctx and Disconnect.
func (p *Publisher) Connect(ctx context.Context) error {
	select {
	case <-p.stopCh:
		return errors.New("publisher stopped")
	default:
	}
	if p.IsConnected() {
		return nil
	}

	token := p.client.Connect()
	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect %s: %w", p.broker, err)
			}
			p.setConnected(true)
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("mqtt connect %s: %w", p.broker, ctx.Err())
		case <-p.stopCh:
			return errors.New("publisher stopped")
		default:
		}
	}
}

// Publish sends every message of b, retained, at QoS 1. It stops at the first failure.
func (p *Publisher) Publish(ctx context.Context, b Batch) error {
	if !p.IsConnected() {
		return ErrNotConnected
	}
	msgs, err := b.Messages(p.topic, time.Now().UTC())
	if err != nil {
		return err
	}
	for _, m := range msgs {
		if err := ctx.Err(); err != nil {
			return err
		}
		token := p.client.Publish(m.Topic, qos, true, m.Payload)
		if !token.WaitTimeout(publishTimeout) {
			return fmt.Errorf("publish timeout for topic %s", m.Topic)
		}
		if err := token.Error(); err != nil {
			p.logger.Error("mqtt publish failed", "topic", m.Topic, "error", err)
			return fmt.Errorf("publish %s: %w", m.Topic, err)
		}
		p.logger.Debug("mqtt published", "topic", m.Topic, "bytes", len(m.Payload))
	}
	p.logger.Info("daily aggregates published", "topic", p.topic, "run_id", b.RunID, "days", len(b.Daily))
	return nil
}

func (p *Publisher) IsConnected() bool {
	p.mu.RLock()
	connected := p.connected
	p.mu.RUnlock()
	return connected && p.client.IsConnected()
}

// Disconnect is idempotent. Connect fails after it.
func (p *Publisher) Disconnect() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	if p.client != nil {
		p.client.Disconnect(250)
	}
	p.setConnected(false)
	p.logger.Info("mqtt disconnected")
}

func (p *Publisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}
