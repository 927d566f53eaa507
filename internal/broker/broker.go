// Package broker exposes the per-frame blackboard to external
// consumers: a TCP server that reads plain-text command lines
// ("subscribe <topic>", "subscribe +<topic>", "subscribe -<topic>") and
// answers with newline-delimited JSON, with a subscribe/publish model per
// connection, plus a UDP discovery broadcast so clients on the LAN can
// find the controller. A bare topic adds to the subscription set, the
// same as "+<topic>".
package broker

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/partylights/partylights-go/internal/blackboard"
)

// Error codes returned in a response envelope's "error" field.
const (
	ErrCodeUnknownCommand = 1
	ErrCodeBadArgs        = 2
	ErrCodeUnknownTopic   = 3
)

// Topic names a subscribable stream.
type Topic string

const (
	TopicAudio     Topic = "audio"
	TopicLights    Topic = "lights"
	TopicOnsetBeat Topic = "onset_beat"
)

var validTopics = map[Topic]bool{
	TopicAudio:     true,
	TopicLights:    true,
	TopicOnsetBeat: true,
}

type envelope struct {
	Type    string          `json:"type"`
	Topic   string          `json:"topic,omitempty"`
	Error   int             `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// subscriber is one connection's topic subscriptions and outbound queue.
type subscriber struct {
	conn   net.Conn
	mu     sync.Mutex
	topics map[Topic]bool
	outCh  chan envelope
}

// Broker accepts TCP connections, tracks their subscriptions, and fans
// out frame data published via Publish.
type Broker struct {
	log  *slog.Logger
	port int

	discoveryPort int
	serviceName   string

	mu   sync.RWMutex
	subs map[net.Conn]*subscriber

	listener net.Listener
	stopCh   chan struct{}
}

// Config configures a Broker's TCP listen port and UDP discovery
// behavior.
type Config struct {
	Port          int
	DiscoveryPort int
	ServiceName   string
}

// New constructs a Broker. It does not start listening until Run.
func New(cfg Config, log *slog.Logger) *Broker {
	if log == nil {
		log = slog.Default()
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "partylights"
	}
	return &Broker{
		log:           log,
		port:          cfg.Port,
		discoveryPort: cfg.DiscoveryPort,
		serviceName:   cfg.ServiceName,
		subs:          make(map[net.Conn]*subscriber),
		stopCh:        make(chan struct{}),
	}
}

// Run starts the TCP listener and the UDP discovery broadcaster, and
// blocks until Stop is called or the listener errors out.
func (b *Broker) Run() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", b.port))
	if err != nil {
		return fmt.Errorf("broker: listen: %w", err)
	}
	b.listener = ln

	go b.broadcastDiscovery()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-b.stopCh:
				return nil
			default:
				return fmt.Errorf("broker: accept: %w", err)
			}
		}
		go b.handleConn(conn)
	}
}

// Stop closes the listener and every open connection.
func (b *Broker) Stop() {
	close(b.stopCh)
	if b.listener != nil {
		b.listener.Close()
	}
	b.mu.Lock()
	for conn := range b.subs {
		conn.Close()
	}
	b.mu.Unlock()
}

func (b *Broker) handleConn(conn net.Conn) {
	sub := &subscriber{conn: conn, topics: make(map[Topic]bool), outCh: make(chan envelope, 64)}
	b.mu.Lock()
	b.subs[conn] = sub
	b.mu.Unlock()

	done := make(chan struct{})
	go b.writeLoop(sub, done)

	defer func() {
		close(done)
		b.mu.Lock()
		delete(b.subs, conn)
		b.mu.Unlock()
		conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		b.handleLine(sub, scanner.Text())
	}
}

func (b *Broker) writeLoop(sub *subscriber, done <-chan struct{}) {
	enc := json.NewEncoder(sub.conn)
	for {
		select {
		case <-done:
			return
		case env := <-sub.outCh:
			if err := enc.Encode(env); err != nil {
				return
			}
		}
	}
}

// handleLine parses one newline-delimited command: "subscribe <topic>",
// "subscribe +<topic>", "subscribe -<topic>".
func (b *Broker) handleLine(sub *subscriber, line string) {
	fields := strings.Fields(line)
	if len(fields) < 2 || fields[0] != "subscribe" {
		b.reply(sub, envelope{Type: "error", Error: ErrCodeUnknownCommand, Message: "unknown command"})
		return
	}

	arg := fields[1]
	remove := strings.HasPrefix(arg, "-")
	add := strings.HasPrefix(arg, "+")
	name := arg
	if remove || add {
		name = arg[1:]
	}
	topic := Topic(name)
	if !validTopics[topic] {
		b.reply(sub, envelope{Type: "error", Error: ErrCodeUnknownTopic, Message: "unknown topic: " + name})
		return
	}

	sub.mu.Lock()
	if remove {
		delete(sub.topics, topic)
	} else {
		sub.topics[topic] = true
	}
	sub.mu.Unlock()

	b.reply(sub, envelope{Type: "ok", Topic: string(topic)})
}

func (b *Broker) reply(sub *subscriber, env envelope) {
	select {
	case sub.outCh <- env:
	default:
	}
}

// PublishFrame fans the rendered board out to every subscriber of
// audio/lights/onset_beat, each marshalled only if at least one
// connection wants it.
func (b *Broker) PublishFrame(bb *blackboard.Board) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		sub.mu.Lock()
		wantAudio := sub.topics[TopicAudio]
		wantLights := sub.topics[TopicLights]
		wantOnsetBeat := sub.topics[TopicOnsetBeat]
		sub.mu.Unlock()

		if wantAudio {
			b.publishTo(sub, TopicAudio, map[string]any{"audio": bb.Audio, "pitch": bb.Pitch})
		}
		if wantLights {
			b.publishTo(sub, TopicLights, bb.RenderedState)
		}
		if wantOnsetBeat {
			b.publishTo(sub, TopicOnsetBeat, map[string]any{"is_onset": bb.IsOnset, "is_beat": bb.IsBeat})
		}
	}
}

func (b *Broker) publishTo(sub *subscriber, topic Topic, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		b.log.Error("broker: marshal publish payload", "topic", topic, "error", err)
		return
	}
	select {
	case sub.outCh <- envelope{Type: "event", Topic: string(topic), Payload: raw}:
	default:
		// Slow subscriber: drop rather than block the frame loop.
	}
}

// broadcastDiscovery sends a UDP broadcast announcing this broker's TCP
// port every two seconds, so LAN clients can find it without
// configuration.
func (b *Broker) broadcastDiscovery() {
	if b.discoveryPort == 0 {
		return
	}
	addr, err := net.ResolveUDPAddr("udp4", "255.255.255.255:"+strconv.Itoa(b.discoveryPort))
	if err != nil {
		b.log.Error("broker: resolve discovery addr", "error", err)
		return
	}
	conn, err := net.DialUDP("udp4", nil, addr)
	if err != nil {
		b.log.Error("broker: dial discovery addr", "error", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	msg, _ := json.Marshal(map[string]any{"service": b.serviceName, "port": b.port})
	for {
		select {
		case <-b.stopCh:
			return
		case <-ticker.C:
			if _, err := conn.Write(msg); err != nil {
				b.log.Warn("broker: discovery broadcast failed", "error", err)
			}
		}
	}
}
