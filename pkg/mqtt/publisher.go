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
	connTimeout    = 10
	reconnTimeout  = 1
	disconnTimeout = 250
)

var (
	errConnectTimeout    = errors.New("failed to connect to MQTT broker due to timeout reached")
	errPublishTimeout    = errors.New("failed to publish due to timeout reached")
	errDisconnectTimeout = errors.New("failed to disconnect due to timeout reached")
	errEmptyTopic        = errors.New("empty topic")
	errEmptyID           = errors.New("empty client ID")
)

// Publisher pushes engine events to an MQTT broker so remote dashboards can
// follow a host without polling it.
type Publisher interface {
	Publish(ctx context.Context, topic string, msg any) error
	Disconnect(ctx context.Context) error
}

var _ Publisher = (*publisher)(nil)

type publisher struct {
	client  mqtt.Client
	qos     byte
	timeout time.Duration
	logger  *slog.Logger
}

func NewPublisher(url string, qos byte, id string, timeout time.Duration, logger *slog.Logger) (Publisher, error) {
	if id == "" {
		return nil, errEmptyID
	}

	opts := mqtt.NewClientOptions().
		AddBroker(url).
		SetClientID(id).
		SetCleanSession(true).
		SetConnectTimeout(connTimeout * time.Second).
		SetMaxReconnectInterval(reconnTimeout * time.Minute).
		SetOnConnectHandler(func(mqtt.Client) {
			logger.Info("MQTT publisher connected", slog.String("client_id", id))
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("MQTT publisher disconnected", slog.Any("error", err))
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if ok := token.WaitTimeout(timeout); !ok {
		return nil, errConnectTimeout
	}
	if token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return &publisher{
		client:  client,
		qos:     qos,
		timeout: timeout,
		logger:  logger,
	}, nil
}

func (p *publisher) Publish(_ context.Context, topic string, msg any) error {
	if topic == "" {
		return errEmptyTopic
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	token := p.client.Publish(topic, p.qos, false, data)
	if token.Error() != nil {
		return token.Error()
	}
	if ok := token.WaitTimeout(p.timeout); !ok {
		return errPublishTimeout
	}

	return token.Error()
}

func (p *publisher) Disconnect(_ context.Context) error {
	p.client.Disconnect(disconnTimeout)

	return nil
}
