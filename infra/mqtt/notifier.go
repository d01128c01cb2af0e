package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/soundbridge/gigdispatch/core/notify"
	"github.com/soundbridge/gigdispatch/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT notifier.
type Config struct {
	Broker       string          `json:"broker"`
	ClientID     string          `json:"client_id"`
	Username     string          `json:"username"`
	Password     string          `json:"password"`
	ReceiptTopic string          `json:"receipt_topic"`
	UseTLS       bool            `json:"use_tls"`
	ClientCert   string          `json:"client_cert"`
	ClientKey    string          `json:"client_key"`
	CABundle     string          `json:"ca_bundle"`
	QoS          map[string]byte `json:"qos"`
	MaxRetries   int             `json:"max_retries"`
	BackoffMS    int             `json:"backoff_ms"`
	TLSConfig    *tls.Config     `json:"-"`
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// PahoNotifier implements the notify.Notifier interface over Eclipse Paho.
// Offers go to provider/{id}/offer, notices to user/{id}/notice, and devices
// confirm offer delivery on the receipt topic.
type PahoNotifier struct {
	cli          pahoClient
	receiptTopic string
	qos          map[string]byte

	mu           sync.Mutex
	receiptChans map[string]chan struct{}
	logger       logger.Logger
	maxRetries   int
	backoff      time.Duration
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewPahoNotifier connects to the MQTT broker and subscribes to the receipt
// topic.
func NewPahoNotifier(cfg Config) (*PahoNotifier, error) {
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_notifier")
	pn := &PahoNotifier{
		receiptTopic: cfg.ReceiptTopic,
		receiptChans: make(map[string]chan struct{}),
		logger:       log,
		qos:          cfg.QoS,
		maxRetries:   cfg.MaxRetries,
		backoff:      time.Duration(cfg.BackoffMS) * time.Millisecond,
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		qos := byte(0)
		if q, ok := pn.qos["receipt"]; ok {
			qos = q
		}
		if token := c.Subscribe(pn.receiptTopic, qos, pn.onReceipt); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	pn.cli = c
	return pn, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	cfg := &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}
	return cfg, nil
}

func (p *PahoNotifier) onReceipt(_ paho.Client, msg paho.Message) {
	var m struct {
		DeliveryID string `json:"delivery_id"`
	}
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		p.logger.Errorf("failed to decode receipt: %v", err)
		return
	}
	p.mu.Lock()
	ch, ok := p.receiptChans[m.DeliveryID]
	if ok {
		select {
		case ch <- struct{}{}:
		default:
		}
		p.logger.Infof("received receipt %s", m.DeliveryID)
	}
	p.mu.Unlock()
}

// PushOffer publishes the offer to the provider specific topic and returns
// the delivery identifier used for receipt tracking.
func (p *PahoNotifier) PushOffer(o notify.Offer) (string, error) {
	deliveryID := uuid.NewString()
	msg := struct {
		DeliveryID string       `json:"delivery_id"`
		Offer      notify.Offer `json:"offer"`
		Timestamp  int64        `json:"timestamp"`
	}{
		DeliveryID: deliveryID,
		Offer:      o,
		Timestamp:  time.Now().UnixMilli(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}

	topic := fmt.Sprintf("provider/%s/offer", o.ProviderID)
	if err := p.publish(topic, "offer", payload); err != nil {
		return "", err
	}

	p.mu.Lock()
	p.receiptChans[deliveryID] = make(chan struct{}, 1)
	p.mu.Unlock()

	return deliveryID, nil
}

// PushNotice publishes an informational notice to the user specific topic.
// No receipt is tracked.
func (p *PahoNotifier) PushNotice(n notify.Notice) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	topic := fmt.Sprintf("user/%s/notice", n.UserID)
	return p.publish(topic, "notice", payload)
}

func (p *PahoNotifier) publish(topic, kind string, payload []byte) error {
	qos := byte(0)
	if q, ok := p.qos[kind]; ok {
		qos = q
	}
	if p.maxRetries <= 0 {
		p.maxRetries = 3
	}
	if p.backoff <= 0 {
		p.backoff = 100 * time.Millisecond
	}
	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(topic, qos, false, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			p.logger.Infof("published %s to %s", kind, topic)
			break
		}
		p.logger.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		time.Sleep(p.backoff * time.Duration(1<<attempt))
	}
	return publishErr
}

// WaitForReceipt blocks until a receipt for the given delivery ID arrives or
// the timeout expires.
func (p *PahoNotifier) WaitForReceipt(deliveryID string, timeout time.Duration) (bool, error) {
	p.mu.Lock()
	ch := p.receiptChans[deliveryID]
	p.mu.Unlock()
	if ch == nil {
		return false, fmt.Errorf("unknown delivery")
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
		p.mu.Lock()
		delete(p.receiptChans, deliveryID)
		p.mu.Unlock()
		return true, nil
	case <-timer.C:
		p.mu.Lock()
		delete(p.receiptChans, deliveryID)
		p.mu.Unlock()
		return false, fmt.Errorf("%w", notify.ErrReceiptTimeout)
	}
}

// Disconnect gracefully closes the MQTT connection.
func (p *PahoNotifier) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
