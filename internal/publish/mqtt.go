package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"herwigbench/internal/config"
	"herwigbench/internal/model"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	qosAtLeastOnce = 1
	publishTimeout = 5 * time.Second
)

// client is the subset of mqtt.Client the publisher needs.
type client interface {
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
	Disconnect(quiesce uint)
}

// Message is the JSON payload published for each kept measurement.
type Message struct {
	ExperimentID string `json:"experiment_id"`
	Project      string `json:"project"`
	Events       int    `json:"events"`
	Jobs         int    `json:"jobs"`
	model.PhaseMeasurement
}

// Publisher streams measurements to an MQTT broker as they are taken.
type Publisher struct {
	client client
	topic  string
}

func clientOptions(cfg config.MQTT) *mqtt.ClientOptions {
	id := cfg.ClientID
	if id == "" {
		host, _ := os.Hostname()
		id = fmt.Sprintf("herwig-bench-%s-%d", host, os.Getpid())
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(id)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		slog.Warn("MQTT connection lost", "broker", cfg.Broker, "error", err)
	})
	return opts
}

// Connect dials cfg.Broker and returns a ready Publisher.
func Connect(cfg config.MQTT) (*Publisher, error) {
	c := mqtt.NewClient(clientOptions(cfg))
	token := c.Connect()
	if !token.WaitTimeout(15 * time.Second) {
		return nil, fmt.Errorf("timed out connecting to %s", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Broker, err)
	}
	slog.Info("Connected to MQTT broker", "broker", cfg.Broker, "topic", cfg.Topic)
	return newPublisher(c, cfg.Topic), nil
}

func newPublisher(c client, topic string) *Publisher {
	return &Publisher{client: c, topic: topic}
}

// Topic is where measurements of phase in experiment id are published.
func (p *Publisher) Topic(experimentID string, phase model.Phase) string {
	return fmt.Sprintf("%s/%s/%s", p.topic, experimentID, phase)
}

func (p *Publisher) ObserveMeasurement(ctx context.Context, exp *model.Experiment, m model.PhaseMeasurement) error {
	payload, err := json.Marshal(Message{
		ExperimentID:     exp.ID,
		Project:          exp.Project,
		Events:           exp.Events,
		Jobs:             exp.Jobs,
		PhaseMeasurement: m,
	})
	if err != nil {
		return err
	}

	topic := p.Topic(exp.ID, m.Phase)
	token := p.client.Publish(topic, qosAtLeastOnce, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		return fmt.Errorf("publish to %s timed out", topic)
	}
	return token.Error()
}

func (p *Publisher) Close() error {
	p.client.Disconnect(250)
	return nil
}
