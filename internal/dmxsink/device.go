// Package dmxsink abstracts DMX output behind a small set_channel/render
// contract, independent of the physical transport, matching the fixture
// engine's only dependency on "a place to put bytes".
package dmxsink

import (
	"fmt"
	"log/slog"
	"net"
	"time"
)

// Device accumulates per-channel writes for one DMX universe and flushes
// them on Render. Channels are 1-based, in [1, 512].
type Device interface {
	SetChannel(ch int, v byte)
	Render() error
	Name() string
}

// bufferedDevice holds the shared channel-buffer bookkeeping every
// implementation composes.
type bufferedDevice struct {
	name string
	buf  [512]byte
}

func (b *bufferedDevice) SetChannel(ch int, v byte) {
	if ch < 1 || ch > 512 {
		return
	}
	b.buf[ch-1] = v
}

func (b *bufferedDevice) Name() string { return b.name }

// NoopSink discards every write without logging. Configured as "sink".
type NoopSink struct{ bufferedDevice }

// NewNoopSink returns a device that renders nothing.
func NewNoopSink(name string) *NoopSink {
	return &NoopSink{bufferedDevice{name: name}}
}

// Render is a no-op.
func (s *NoopSink) Render() error { return nil }

// LoggingSink discards writes after logging the rendered frame. Configured
// as "vsink".
type LoggingSink struct {
	bufferedDevice
	log *slog.Logger
}

// NewLoggingSink returns a device that logs each render and discards it.
func NewLoggingSink(name string, log *slog.Logger) *LoggingSink {
	if log == nil {
		log = slog.Default()
	}
	return &LoggingSink{bufferedDevice: bufferedDevice{name: name}, log: log}
}

// Render logs the current buffer contents.
func (s *LoggingSink) Render() error {
	s.log.Debug("dmx render (virtual)", "device", s.name, "frame", s.buf)
	return nil
}

// RawUDPDevice sends the 512-byte universe over a plain UDP datagram to a
// configured "host:port" destination. It is the sole concrete network
// transport this package offers — it makes no attempt at USB/serial DMX
// interface discovery, which is an external concern per the fixture
// model's contract.
//
// Open failures are retried at most once per second; after MaxAttempts
// consecutive failures the device permanently downgrades to a no-op sink,
// logging once at the moment of downgrade.
type RawUDPDevice struct {
	bufferedDevice

	addr        string
	log         *slog.Logger
	maxAttempts int

	conn         net.Conn
	attempts     int
	lastAttempt  time.Time
	downgraded   bool
}

// NewRawUDPDevice returns a device that streams raw DMX bytes to addr.
// maxAttempts <= 0 defaults to 10.
func NewRawUDPDevice(name, addr string, maxAttempts int, log *slog.Logger) *RawUDPDevice {
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	if log == nil {
		log = slog.Default()
	}
	return &RawUDPDevice{
		bufferedDevice: bufferedDevice{name: name},
		addr:           addr,
		log:            log,
		maxAttempts:    maxAttempts,
	}
}

func (d *RawUDPDevice) ensureConn() error {
	if d.conn != nil {
		return nil
	}
	if d.downgraded {
		return nil
	}
	if !d.lastAttempt.IsZero() && time.Since(d.lastAttempt) < time.Second {
		return fmt.Errorf("dmxsink: %s not yet due for reattempt", d.name)
	}
	d.lastAttempt = time.Now()
	conn, err := net.Dial("udp4", d.addr)
	if err != nil {
		d.attempts++
		if d.attempts >= d.maxAttempts {
			d.downgraded = true
			d.log.Error("dmx device permanently downgraded to sink", "device", d.name, "addr", d.addr, "attempts", d.attempts)
		}
		return err
	}
	d.conn = conn
	d.attempts = 0
	return nil
}

// Render flushes the current buffer to the remote device, reattempting
// the connection per the retry/downgrade policy described on the type.
func (d *RawUDPDevice) Render() error {
	if d.downgraded {
		return nil
	}
	if err := d.ensureConn(); err != nil {
		return err
	}
	_, err := d.conn.Write(d.buf[:])
	if err != nil {
		_ = d.conn.Close()
		d.conn = nil
	}
	return err
}

// Close releases the underlying connection, if any.
func (d *RawUDPDevice) Close() error {
	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	return err
}
