package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	connTimeout    = 10 * time.Second
	maxReconnect   = time.Minute
	disconnTimeout = 250
	defTimeout     = 30 * time.Second

	statusOnline  = "online"
	statusOffline = "offline"
)

var (
	ErrTimeout    = errors.New("timeout reached waiting for broker")
	ErrConnect    = errors.New("failed to connect to MQTT broker")
	errEmptyID    = errors.New("empty client id")
	errEmptyTopic = errors.New("empty topic")
)

type Config struct {
	URL       string        `env:"URL"        envDefault:""`
	ClientID  string        `env:"CLIENT_ID"  envDefault:""`
	Username  string        `env:"USERNAME"   envDefault:""`
	Password  string        `env:"PASSWORD"   envDefault:""`
	QoS       uint8         `env:"QOS"        envDefault:"1"`
	Timeout   time.Duration `env:"TIMEOUT"    envDefault:"30s"`
	BaseTopic string        `env:"BASE_TOPIC" envDefault:"fedavg"`
}

// Enabled reports whether a broker has been configured.
func (c Config) Enabled() bool {
	return c.URL != ""
}

// Handler receives the decoded JSON object of every message on a topic.
type Handler func(topic string, msg map[string]any) error

type PubSub interface {
	Publish(ctx context.Context, topic string, msg any) error
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Unsubscribe(ctx context.Context, topic string) error
	Disconnect(ctx context.Context) error
}

type pubsub struct {
	client mqtt.Client
	cfg    Config
	logger *slog.Logger
}

// NewPubSub connects to the broker. When a base topic is configured the
// client announces itself on its status topic and leaves an offline will.
func NewPubSub(cfg Config, logger *slog.Logger) (PubSub, error) {
	if cfg.ClientID == "" {
		return nil, errEmptyID
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("mqtt_client_id", cfg.ClientID))

	ps := &pubsub{cfg: cfg, logger: logger}
	ps.client = mqtt.NewClient(ps.options())

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := wait(ctx, ps.client.Connect()); err != nil {
		return nil, errors.Join(ErrConnect, err)
	}

	return ps, nil
}

func (ps *pubsub) Publish(ctx context.Context, topic string, msg any) error {
	if topic == "" {
		return errEmptyTopic
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return ps.wait(ctx, ps.client.Publish(topic, ps.cfg.QoS, false, data))
}

func (ps *pubsub) Subscribe(ctx context.Context, topic string, handler Handler) error {
	if topic == "" {
		return errEmptyTopic
	}

	return ps.wait(ctx, ps.client.Subscribe(topic, ps.cfg.QoS, ps.mqttHandler(handler)))
}

func (ps *pubsub) Unsubscribe(ctx context.Context, topic string) error {
	if topic == "" {
		return errEmptyTopic
	}

	return ps.wait(ctx, ps.client.Unsubscribe(topic))
}

// Disconnect marks the client offline and closes the connection.
func (ps *pubsub) Disconnect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if topic := ps.statusTopic(); topic != "" {
		if err := ps.wait(ctx, ps.client.Publish(topic, ps.cfg.QoS, true, ps.status(statusOffline))); err != nil {
			ps.logger.Warn("failed to publish offline status", slog.Any("error", err))
		}
	}
	ps.client.Disconnect(disconnTimeout)

	return nil
}

func (ps *pubsub) options() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions().
		AddBroker(ps.cfg.URL).
		SetClientID(ps.cfg.ClientID).
		SetUsername(ps.cfg.Username).
		SetPassword(ps.cfg.Password).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectTimeout(connTimeout).
		SetMaxReconnectInterval(maxReconnect)

	if topic := ps.statusTopic(); topic != "" {
		opts.SetWill(topic, string(ps.status(statusOffline)), ps.cfg.QoS, true)
	}

	opts.SetOnConnectHandler(func(c mqtt.Client) {
		ps.logger.Info("MQTT connection established", slog.String("broker", ps.cfg.URL))

		if topic := ps.statusTopic(); topic != "" {
			// Runs on paho's callback goroutine, so the token is not waited on.
			c.Publish(topic, ps.cfg.QoS, true, ps.status(statusOnline))
		}
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		ps.logger.Warn("MQTT connection lost", slog.Any("error", err))
	})

	opts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		ps.logger.Info("MQTT reconnecting", slog.String("broker", ps.cfg.URL))
	})

	return opts
}

func (ps *pubsub) statusTopic() string {
	if ps.cfg.BaseTopic == "" {
		return ""
	}

	return StatusTopic(ps.cfg.BaseTopic, ps.cfg.ClientID)
}

func (ps *pubsub) status(state string) []byte {
	data, _ := json.Marshal(map[string]string{
		"status":    state,
		"client_id": ps.cfg.ClientID,
	})

	return data
}

func (ps *pubsub) wait(ctx context.Context, token mqtt.Token) error {
	ctx, cancel := context.WithTimeout(ctx, ps.cfg.Timeout)
	defer cancel()

	return wait(ctx, token)
}

// wait blocks until the token completes or ctx is done.
func wait(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
		}

		return ctx.Err()
	}
}

func (ps *pubsub) mqttHandler(h Handler) mqtt.MessageHandler {
	return func(_ mqtt.Client, m mqtt.Message) {
		defer m.Ack()

		var msg map[string]any
		if err := json.Unmarshal(m.Payload(), &msg); err != nil {
			ps.logger.Warn("failed to unmarshal received message", slog.String("topic", m.Topic()), slog.Any("error", err))

			return
		}

		if err := h(m.Topic(), msg); err != nil {
			ps.logger.Warn("failed to handle MQTT message", slog.String("topic", m.Topic()), slog.Any("error", err))
		}
	}
}
