package telemetry

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/albionradar/sniffer/internal/config"
	"github.com/albionradar/sniffer/internal/contracts"
	"github.com/albionradar/sniffer/internal/util"
)

// StatusTopic carries lifecycle notices under the configured prefix.
const StatusTopic = "sniffer/status"

// AppVersion is reported in every MQTT message.
var AppVersion = "dev"

// MQTTPublisher publishes contracts as JSON messages. Every message carries
// host metadata so consumers can tell capture hosts apart.
type MQTTPublisher struct {
	cfg      config.MQTTConfig
	client   mqtt.Client
	metadata map[string]interface{}
	logger   zerolog.Logger
}

// NewMQTTPublisher builds the paho client. Connect must be called before
// Publish.
func NewMQTTPublisher(cfg config.MQTTConfig, logger zerolog.Logger) (*MQTTPublisher, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("MQTT is disabled")
	}

	sysInfo := util.GetSystemInfo()

	scheme := "tcp"
	if cfg.UseTLS {
		scheme = "ssl"
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.BrokerURL, cfg.Port))

	if cfg.ClientID != "" {
		opts.SetClientID(cfg.ClientID)
	} else {
		opts.SetClientID(fmt.Sprintf("sniffer-%s", sysInfo.Hostname))
	}

	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetCleanSession(true)

	if cfg.UseTLS {
		tlsConfig := &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
		// mTLS
		if cfg.CertFile != "" && cfg.KeyFile != "" {
			cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
			if err != nil {
				return nil, fmt.Errorf("failed to load MQTT TLS certificate: %w", err)
			}
			tlsConfig.Certificates = []tls.Certificate{cert}
		}
		opts.SetTLSConfig(tlsConfig)
	}

	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info().Msg("MQTT connected")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn().Err(err).Msg("MQTT connection lost")
	})

	return newMQTTPublisher(cfg, mqtt.NewClient(opts), sysInfo, logger), nil
}

func newMQTTPublisher(cfg config.MQTTConfig, client mqtt.Client, sysInfo util.SystemInfo, logger zerolog.Logger) *MQTTPublisher {
	return &MQTTPublisher{
		cfg:    cfg,
		client: client,
		metadata: map[string]interface{}{
			"hostname":    sysInfo.Hostname,
			"platform":    sysInfo.Platform,
			"cpu_model":   sysInfo.CPUModel,
			"cpu_cores":   sysInfo.CPUCores,
			"memory_mb":   sysInfo.TotalMemory,
			"app_version": AppVersion,
		},
		logger: logger,
	}
}

func (p *MQTTPublisher) Name() string { return "mqtt" }

// Connect dials the broker, giving up when ctx is done.
func (p *MQTTPublisher) Connect(ctx context.Context) error {
	p.logger.Info().
		Str("broker", p.cfg.BrokerURL).
		Int("port", p.cfg.Port).
		Msg("connecting to MQTT broker")

	if err := waitToken(ctx, p.client.Connect()); err != nil {
		return fmt.Errorf("MQTT connect failed: %w", err)
	}
	p.publishStatus(ctx, "started")
	return nil
}

// Publish sends c to <prefix>/<topic> and waits for the broker's
// acknowledgement at the configured QoS.
func (p *MQTTPublisher) Publish(ctx context.Context, topic string, c contracts.Contract) error {
	if !p.client.IsConnected() {
		return ErrNotConnected
	}

	data, err := json.Marshal(p.buildMessage(c.ContractName(), c))
	if err != nil {
		return fmt.Errorf("failed to marshal MQTT message: %w", err)
	}

	token := p.client.Publish(p.topic(topic), byte(p.cfg.QoS), false, data)
	return waitToken(ctx, token)
}

// Close announces shutdown and disconnects.
func (p *MQTTPublisher) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	p.publishStatus(ctx, "shutdown")
	p.client.Disconnect(250)
	p.logger.Info().Msg("MQTT disconnected")
	return nil
}

func (p *MQTTPublisher) topic(t string) string {
	prefix := strings.Trim(p.cfg.TopicPrefix, "/")
	if prefix == "" {
		return t
	}
	return prefix + "/" + t
}

func (p *MQTTPublisher) publishStatus(ctx context.Context, event string) {
	if !p.client.IsConnected() {
		return
	}
	data, err := json.Marshal(p.buildMessage("status", map[string]interface{}{"event": event}))
	if err != nil {
		return
	}
	if err := waitToken(ctx, p.client.Publish(p.topic(StatusTopic), 1, false, data)); err != nil {
		p.logger.Warn().Err(err).Str("event", event).Msg("MQTT status publish failed")
	}
}

// buildMessage combines metadata with the payload.
func (p *MQTTPublisher) buildMessage(kind string, payload interface{}) map[string]interface{} {
	msg := make(map[string]interface{}, len(p.metadata)+3)
	for k, v := range p.metadata {
		msg[k] = v
	}
	msg["contract"] = kind
	msg["payload"] = payload
	msg["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	return msg
}

func waitToken(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
