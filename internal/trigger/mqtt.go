// Package trigger receives remotely authorized start commands over MQTT.
// The broker connection is owned here and reconnects with backoff; nothing
// else in the process touches it.
package trigger

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"yfitg/scout/internal/config"
	"yfitg/scout/internal/domain"

	paho "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

// Handler is invoked for every decoded start command. It must not block; the
// orchestrator's submit path returns immediately.
type Handler func(domain.StartRequest)

type Client struct {
	Log      *log.Entry
	DeviceID string
	Config   config.MQTTConfig
	Handler  Handler

	client paho.Client
}

// startPayload is the wire format published by the consent portal. It is
// untrusted input: scope is fully re-validated downstream no matter what the
// portal claims.
type startPayload struct {
	ConsentID string              `json:"consent_id"`
	Scope     domain.ScopeRequest `json:"scope"`
	Contact   domain.Contact      `json:"contact"`
	Timestamp string              `json:"timestamp"`
}

func (c *Client) topic() string {
	return fmt.Sprintf("device/%s/start", c.DeviceID)
}

// Connect establishes the broker session and subscribes to the device's
// start topic. Reconnection and resubscription are automatic afterwards.
func (c *Client) Connect() error {
	opts := paho.NewClientOptions().
		SetClientID("scout-" + c.DeviceID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(time.Minute).
		SetKeepAlive(60 * time.Second)

	scheme := "tcp"
	if c.Config.CACert != "" {
		tlsCfg, err := c.tlsConfig()
		if err != nil {
			return fmt.Errorf("mqtt tls setup: %w", err)
		}
		opts.SetTLSConfig(tlsCfg)
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, c.Config.Broker, c.Config.Port))

	if c.Config.Username != "" {
		opts.SetUsername(c.Config.Username)
		opts.SetPassword(c.Config.Password)
	}

	opts.SetOnConnectHandler(func(client paho.Client) {
		c.Log.Info("Connected to MQTT broker")
		token := client.Subscribe(c.topic(), 1, c.onMessage)
		token.Wait()
		if err := token.Error(); err != nil {
			c.Log.WithError(err).Error("Subscription failed")
			return
		}
		c.Log.WithField("topic", c.topic()).Info("Subscribed")
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		c.Log.WithError(err).Warn("Disconnected from MQTT broker")
	})

	c.client = paho.NewClient(opts)
	token := c.client.Connect()
	token.Wait()
	return token.Error()
}

// Close disconnects from the broker, allowing in-flight work to flush.
func (c *Client) Close() {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(250)
	}
}

func (c *Client) onMessage(_ paho.Client, msg paho.Message) {
	var payload startPayload
	if err := json.Unmarshal(msg.Payload(), &payload); err != nil {
		c.Log.WithError(err).Error("Invalid JSON in start command")
		return
	}
	if payload.ConsentID == "" {
		c.Log.Error("Start command missing consent_id")
		return
	}

	c.Log.WithField("consent_id", payload.ConsentID).Info("Received start command")

	c.Handler(domain.StartRequest{
		DeviceID:   c.DeviceID,
		ConsentID:  payload.ConsentID,
		Scope:      payload.Scope,
		Contact:    payload.Contact,
		ReceivedAt: time.Now().UTC(),
	})
}

func (c *Client) tlsConfig() (*tls.Config, error) {
	caPEM, err := os.ReadFile(c.Config.CACert)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("no certificates parsed from %s", c.Config.CACert)
	}

	cfg := &tls.Config{
		RootCAs:    pool,
		MinVersion: tls.VersionTLS12,
	}

	if c.Config.ClientCert != "" && c.Config.ClientKey != "" {
		cert, err := tls.LoadX509KeyPair(c.Config.ClientCert, c.Config.ClientKey)
		if err != nil {
			return nil, err
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}
