package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"owl-location/internal/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTClient MQTT客户端封装（仅发布）
type MQTTClient struct {
	client mqtt.Client
}

// NewMQTTClient 创建MQTT客户端并连接
func NewMQTTClient(cfg *config.MQTTConfig) (*MQTTClient, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return &MQTTClient{client: client}, nil
}

// Publish 发布消息
func (c *MQTTClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := c.client.Publish(topic, qos, retained, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, token.Error())
	}
	return nil
}

// Disconnect 断开连接（250ms 等待时间）
func (c *MQTTClient) Disconnect() {
	c.client.Disconnect(250)
}

type mqttPublisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// MQTTPublisher publishes events to <prefix>/<created|updated|deleted>/<id>.
type MQTTPublisher struct {
	client mqttPublisher
	prefix string
	qos    byte
}

func NewMQTTPublisher(client mqttPublisher, prefix string, qos byte) *MQTTPublisher {
	return &MQTTPublisher{client: client, prefix: strings.TrimSuffix(prefix, "/"), qos: qos}
}

// Topic returns the topic an event is published on.
func (p *MQTTPublisher) Topic(e Event) string {
	action := strings.TrimPrefix(string(e.Type), "location.")
	return p.prefix + "/" + action + "/" + e.ID
}

func (p *MQTTPublisher) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return p.client.Publish(p.Topic(e), p.qos, false, payload)
}

func (p *MQTTPublisher) Close() error {
	if c, ok := p.client.(interface{ Disconnect() }); ok {
		c.Disconnect()
	}
	return nil
}
