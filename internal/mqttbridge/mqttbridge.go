// Package mqttbridge mirrors the rendered light state to MQTT as a
// read-only event stream; it never accepts commands back into the
// frame loop.
package mqttbridge

import (
	"encoding/json"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/partylights/partylights-go/internal/blackboard"
)

// Config configures the MQTT mirror connection.
type Config struct {
	Broker      string
	ClientID    string
	TopicPrefix string
}

// Bridge publishes rendered-state snapshots to an MQTT broker from a
// buffered background goroutine, so a slow or unreachable broker never
// stalls the scheduler.
type Bridge struct {
	cfg    Config
	log    *slog.Logger
	client mqtt.Client
	snapCh chan map[string]map[string]int
	stopCh chan struct{}
}

// New constructs a Bridge. Call Start to connect.
func New(cfg Config, log *slog.Logger) *Bridge {
	if cfg.ClientID == "" {
		cfg.ClientID = "partylights"
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "partylights"
	}
	if log == nil {
		log = slog.Default()
	}
	return &Bridge{
		cfg:    cfg,
		log:    log,
		snapCh: make(chan map[string]map[string]int, 1),
		stopCh: make(chan struct{}),
	}
}

// Start connects to the broker and begins forwarding published
// snapshots.
func (b *Bridge) Start() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(b.cfg.Broker)
	opts.SetClientID(b.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		b.log.Warn("mqttbridge: connection lost", "error", err)
	})

	b.client = mqtt.NewClient(opts)
	token := b.client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return err
	}

	go b.forward()
	b.log.Info("mqttbridge started", "broker", b.cfg.Broker)
	return nil
}

// Stop disconnects from the broker.
func (b *Bridge) Stop() {
	close(b.stopCh)
	if b.client != nil && b.client.IsConnected() {
		b.client.Disconnect(1000)
	}
}

// Publish hands the frame's rendered state to the background
// forwarder, dropping it if the forwarder is still busy with the
// previous one rather than blocking the caller.
func (b *Bridge) Publish(bb *blackboard.Board) {
	select {
	case b.snapCh <- bb.RenderedState:
	default:
	}
}

func (b *Bridge) forward() {
	for {
		select {
		case <-b.stopCh:
			return
		case snap := <-b.snapCh:
			if b.client == nil || !b.client.IsConnected() {
				continue
			}
			data, err := json.Marshal(snap)
			if err != nil {
				b.log.Error("mqttbridge: marshal snapshot", "error", err)
				continue
			}
			b.client.Publish(b.cfg.TopicPrefix+"/state", 0, true, data)
		}
	}
}
