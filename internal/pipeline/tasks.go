// Package pipeline adapts each concrete component (audio capture,
// analysis chain, mapper, light engine, and the optional external
// surfaces) into a scheduler.Task, so main.go only has to register an
// ordered list.
package pipeline

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/partylights/partylights-go/internal/audio"
	"github.com/partylights/partylights-go/internal/audio/capture"
	"github.com/partylights/partylights-go/internal/blackboard"
	"github.com/partylights/partylights-go/internal/broker"
	"github.com/partylights/partylights-go/internal/lightengine"
	"github.com/partylights/partylights-go/internal/mapper"
	"github.com/partylights/partylights-go/internal/metrics"
	"github.com/partylights/partylights-go/internal/modbusbridge"
	"github.com/partylights/partylights-go/internal/mqttbridge"
	"github.com/partylights/partylights-go/internal/opsapi"
)

// CaptureTask reads one raw audio frame per tick from a capture.Source.
type CaptureTask struct {
	source capture.Source
	buf    []int16
}

// NewCaptureTask builds a CaptureTask reading chunkSize-sample frames.
func NewCaptureTask(source capture.Source, chunkSize int) *CaptureTask {
	return &CaptureTask{source: source, buf: make([]int16, chunkSize)}
}

func (t *CaptureTask) Name() string                  { return "capture" }
func (t *CaptureTask) Setup(context.Context) error    { return nil }
func (t *CaptureTask) Teardown(context.Context) error { return t.source.Close() }
func (t *CaptureTask) Run(_ context.Context, bb *blackboard.Board) error {
	if err := t.source.Read(t.buf); err != nil {
		bb.RawAudio = nil
		return err
	}
	bb.RawAudio = append([]int16(nil), t.buf...)
	return nil
}

// AnalysisTask runs the smoothing/beat/pitch/idle chain in order.
type AnalysisTask struct {
	chain audio.Chain
}

// NewAnalysisTask builds an AnalysisTask over the given processors.
func NewAnalysisTask(chain audio.Chain) *AnalysisTask {
	return &AnalysisTask{chain: chain}
}

func (t *AnalysisTask) Name() string                                     { return "analysis" }
func (t *AnalysisTask) Setup(context.Context) error                      { return nil }
func (t *AnalysisTask) Teardown(context.Context) error                   { return nil }
func (t *AnalysisTask) Run(_ context.Context, bb *blackboard.Board) error { t.chain.Run(bb); return nil }

// MapperTask runs the directive/state-effect mapping phase.
type MapperTask struct {
	m *mapper.Mapper
}

// NewMapperTask wraps an already-built Mapper.
func NewMapperTask(m *mapper.Mapper) *MapperTask { return &MapperTask{m: m} }

func (t *MapperTask) Name() string                                     { return "mapper" }
func (t *MapperTask) Setup(context.Context) error                      { return nil }
func (t *MapperTask) Teardown(context.Context) error                   { return nil }
func (t *MapperTask) Run(_ context.Context, bb *blackboard.Board) error { t.m.Run(bb); return nil }

// LightEngineTask steps every active effect and renders the frame.
type LightEngineTask struct {
	e *lightengine.Engine
}

// NewLightEngineTask wraps an already-built Engine.
func NewLightEngineTask(e *lightengine.Engine) *LightEngineTask { return &LightEngineTask{e: e} }

func (t *LightEngineTask) Name() string                                     { return "lights" }
func (t *LightEngineTask) Setup(context.Context) error                      { return nil }
func (t *LightEngineTask) Teardown(context.Context) error                   { return nil }
func (t *LightEngineTask) Run(_ context.Context, bb *blackboard.Board) error { t.e.Run(bb); return nil }

// BrokerTask runs the TCP/UDP broker's listener in the background and
// publishes each frame to its subscribers.
type BrokerTask struct {
	b   *broker.Broker
	log *slog.Logger
}

// NewBrokerTask wraps an already-built Broker.
func NewBrokerTask(b *broker.Broker, log *slog.Logger) *BrokerTask {
	if log == nil {
		log = slog.Default()
	}
	return &BrokerTask{b: b, log: log}
}

func (t *BrokerTask) Name() string { return "broker" }
func (t *BrokerTask) Setup(context.Context) error {
	go func() {
		if err := t.b.Run(); err != nil {
			t.log.Error("broker: stopped", "error", err)
		}
	}()
	return nil
}
func (t *BrokerTask) Teardown(context.Context) error { t.b.Stop(); return nil }
func (t *BrokerTask) Run(_ context.Context, bb *blackboard.Board) error {
	t.b.PublishFrame(bb)
	return nil
}

// MetricsTask republishes the rendered frame as Prometheus gauges.
type MetricsTask struct {
	reg *metrics.Registry
}

// NewMetricsTask wraps an already-built Registry.
func NewMetricsTask(reg *metrics.Registry) *MetricsTask { return &MetricsTask{reg: reg} }

func (t *MetricsTask) Name() string                  { return "metrics" }
func (t *MetricsTask) Setup(context.Context) error    { return nil }
func (t *MetricsTask) Teardown(context.Context) error { return nil }
func (t *MetricsTask) Run(_ context.Context, bb *blackboard.Board) error {
	t.reg.ObserveRenderedState(bb.RenderedState)
	return nil
}

// OpsAPITask runs the ops HTTP surface in the background and keeps its
// status snapshot current.
type OpsAPITask struct {
	s    *opsapi.Server
	addr string
	srv  *http.Server
	log  *slog.Logger
}

// NewOpsAPITask wraps an already-built opsapi.Server bound to addr.
func NewOpsAPITask(s *opsapi.Server, addr string, log *slog.Logger) *OpsAPITask {
	if log == nil {
		log = slog.Default()
	}
	return &OpsAPITask{s: s, addr: addr, log: log}
}

func (t *OpsAPITask) Name() string { return "opsapi" }
func (t *OpsAPITask) Setup(context.Context) error {
	t.srv = &http.Server{Addr: t.addr, Handler: t.s.Handler()}
	go func() {
		if err := t.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.log.Error("opsapi: stopped", "error", err)
		}
	}()
	return nil
}
func (t *OpsAPITask) Teardown(ctx context.Context) error { return t.srv.Shutdown(ctx) }
func (t *OpsAPITask) Run(_ context.Context, bb *blackboard.Board) error {
	t.s.Observe(bb)
	return nil
}

// MQTTBridgeTask hands each frame's rendered state to the MQTT mirror.
type MQTTBridgeTask struct {
	b *mqttbridge.Bridge
}

// NewMQTTBridgeTask wraps an already-built Bridge.
func NewMQTTBridgeTask(b *mqttbridge.Bridge) *MQTTBridgeTask { return &MQTTBridgeTask{b: b} }

func (t *MQTTBridgeTask) Name() string               { return "mqttbridge" }
func (t *MQTTBridgeTask) Setup(context.Context) error { return t.b.Start() }
func (t *MQTTBridgeTask) Teardown(context.Context) error {
	t.b.Stop()
	return nil
}
func (t *MQTTBridgeTask) Run(_ context.Context, bb *blackboard.Board) error {
	t.b.Publish(bb)
	return nil
}

// ModbusBridgeTask hands each frame's rendered state to the Modbus mirror.
type ModbusBridgeTask struct {
	b *modbusbridge.Bridge
}

// NewModbusBridgeTask wraps an already-built Bridge.
func NewModbusBridgeTask(b *modbusbridge.Bridge) *ModbusBridgeTask { return &ModbusBridgeTask{b: b} }

func (t *ModbusBridgeTask) Name() string               { return "modbusbridge" }
func (t *ModbusBridgeTask) Setup(context.Context) error { return t.b.Start() }
func (t *ModbusBridgeTask) Teardown(context.Context) error {
	t.b.Stop()
	return nil
}
func (t *ModbusBridgeTask) Run(_ context.Context, bb *blackboard.Board) error {
	t.b.Update(bb)
	return nil
}
