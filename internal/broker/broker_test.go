package broker

import (
	"bufio"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/partylights/partylights-go/internal/blackboard"
)

func startTestBroker(t *testing.T) (*Broker, net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	b := New(Config{Port: 0}, nil)
	b.listener = ln

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go b.handleConn(conn)
		}
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close(); ln.Close() })
	return b, conn
}

func TestSubscribeAckAndUnknownTopic(t *testing.T) {
	_, conn := startTestBroker(t)
	reader := bufio.NewReader(conn)

	conn.Write([]byte("subscribe audio\n"))
	var ok envelope
	if err := json.NewDecoder(reader).Decode(&ok); err != nil {
		t.Fatal(err)
	}
	if ok.Type != "ok" || ok.Topic != "audio" {
		t.Errorf("unexpected ack: %+v", ok)
	}

	conn.Write([]byte("subscribe bogus\n"))
	var bad envelope
	if err := json.NewDecoder(reader).Decode(&bad); err != nil {
		t.Fatal(err)
	}
	if bad.Type != "error" || bad.Error != ErrCodeUnknownTopic {
		t.Errorf("expected unknown topic error, got %+v", bad)
	}
}

func TestPublishFrameOnlyReachesSubscribedTopics(t *testing.T) {
	b, conn := startTestBroker(t)
	reader := bufio.NewReader(conn)

	conn.Write([]byte("subscribe onset_beat\n"))
	var ack envelope
	json.NewDecoder(reader).Decode(&ack)

	bb := blackboard.New(time.Unix(0, 0))
	bb.IsBeat = true
	b.PublishFrame(bb)

	var event envelope
	conn.SetReadDeadline(time.Now().Add(time.Second))
	if err := json.NewDecoder(reader).Decode(&event); err != nil {
		t.Fatal(err)
	}
	if event.Type != "event" || event.Topic != "onset_beat" {
		t.Fatalf("unexpected event: %+v", event)
	}

	var payload map[string]bool
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		t.Fatal(err)
	}
	if !payload["is_beat"] {
		t.Error("expected is_beat true in published payload")
	}
}

func TestUnsubscribeRemovesTopic(t *testing.T) {
	_, conn := startTestBroker(t)
	reader := bufio.NewReader(conn)

	conn.Write([]byte("subscribe +audio\n"))
	var ack envelope
	json.NewDecoder(reader).Decode(&ack)

	conn.Write([]byte("subscribe -audio\n"))
	var ack2 envelope
	if err := json.NewDecoder(reader).Decode(&ack2); err != nil {
		t.Fatal(err)
	}
	if ack2.Type != "ok" {
		t.Errorf("unexpected unsubscribe ack: %+v", ack2)
	}
}
