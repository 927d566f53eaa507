// Package modbusbridge exposes the rendered light state as read-only
// Modbus holding registers: one register per (light, property) pair,
// in a fixed, alphabetically sorted order computed once at startup.
package modbusbridge

import (
	"encoding/binary"
	"log/slog"
	"sort"
	"sync"

	"github.com/tbrandon/mbserver"

	"github.com/partylights/partylights-go/internal/blackboard"
)

// regKey is one (light, property) pair's fixed register address.
type regKey struct {
	light    string
	property string
}

// Bridge serves the most recently rendered frame as Modbus holding
// registers. It registers no write handlers: this mirror is read-only.
type Bridge struct {
	log  *slog.Logger
	port string
	mb   *mbserver.Server

	mu      sync.RWMutex
	order   []regKey
	indexOf map[regKey]int
	values  []uint16
}

// New builds a Bridge listening on addr (e.g. ":502"). The register
// layout is fixed the first time Update is called; later frames must
// report the same (light, property) set.
func New(addr string, log *slog.Logger) *Bridge {
	if log == nil {
		log = slog.Default()
	}
	return &Bridge{log: log, port: addr, indexOf: make(map[regKey]int)}
}

// Start launches the Modbus TCP listener.
func (b *Bridge) Start() error {
	b.mb = mbserver.NewServer()
	b.mb.RegisterFunctionHandler(3, b.handleReadHoldingRegisters) // FC03

	go func() {
		if err := b.mb.ListenTCP(b.port); err != nil {
			b.log.Error("modbusbridge: listen failed", "error", err)
		}
	}()
	b.log.Info("modbusbridge started", "addr", b.port)
	return nil
}

// Stop closes the Modbus listener.
func (b *Bridge) Stop() {
	if b.mb != nil {
		b.mb.Close()
	}
}

// Update snapshots the frame's rendered state into the register table.
// The first call fixes the register layout; later calls reuse it,
// assigning 0 to any property no longer present.
func (b *Bridge) Update(bb *blackboard.Board) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.order == nil {
		b.buildLayoutLocked(bb.RenderedState)
	}

	for i := range b.values {
		b.values[i] = 0
	}
	for light, props := range bb.RenderedState {
		for prop, v := range props {
			if idx, ok := b.indexOf[regKey{light, prop}]; ok {
				b.values[idx] = uint16(v)
			}
		}
	}
}

func (b *Bridge) buildLayoutLocked(rendered map[string]map[string]int) {
	for light, props := range rendered {
		for prop := range props {
			b.order = append(b.order, regKey{light, prop})
		}
	}
	sort.Slice(b.order, func(i, j int) bool {
		if b.order[i].light != b.order[j].light {
			return b.order[i].light < b.order[j].light
		}
		return b.order[i].property < b.order[j].property
	})
	for i, k := range b.order {
		b.indexOf[k] = i
	}
	b.values = make([]uint16, len(b.order))
}

func (b *Bridge) handleReadHoldingRegisters(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	data := frame.GetData()
	if len(data) < 4 {
		return []byte{}, &mbserver.IllegalDataValue
	}
	startAddr := binary.BigEndian.Uint16(data[0:2])
	quantity := binary.BigEndian.Uint16(data[2:4])

	b.mu.RLock()
	defer b.mu.RUnlock()

	if int(startAddr)+int(quantity) > len(b.values) {
		return []byte{}, &mbserver.IllegalDataAddress
	}

	resp := make([]byte, 1+quantity*2)
	resp[0] = byte(quantity * 2)
	for i := uint16(0); i < quantity; i++ {
		binary.BigEndian.PutUint16(resp[1+i*2:], b.values[startAddr+i])
	}
	return resp, &mbserver.Success
}
