// Package lightengine is the sole owner of fixture state: it enforces
// per-(light, property) exclusivity, runs time-based effects, and produces
// a diff-minimized DMX frame once per scheduler tick.
package lightengine

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/lucsky/cuid"

	"github.com/partylights/partylights-go/internal/blackboard"
	"github.com/partylights/partylights-go/internal/fixture"
)

// exKey identifies a per-(light, property) exclusivity/effect slot.
// Property-less acquisitions use an empty Property.
type exKey struct {
	Light    string
	Property string
}

type stateWrite struct {
	light  string
	values map[string]any
}

// EffectArgs are the caller-supplied parameters for CreateEffect. Random
// value substitution must already have happened by the time these reach
// the engine — the engine never re-rolls a random value per frame.
type EffectArgs struct {
	Function   string
	StartValue float64
	EndValue   float64
	Duration   float64
	KeepState  bool
}

// Engine is the light state/effect engine (component D).
type Engine struct {
	log *slog.Logger
	now func() time.Time

	lights  map[string]*fixture.Light
	devices map[string]fixture.Device

	exclusive map[exKey]string
	effects   map[exKey]*Effect
	queue     []stateWrite
}

// New constructs an Engine over the given configured lights and devices.
// now, if nil, defaults to time.Now.
func New(lights map[string]*fixture.Light, devices map[string]fixture.Device, log *slog.Logger, now func() time.Time) *Engine {
	if log == nil {
		log = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Engine{
		log:       log,
		now:       now,
		lights:    lights,
		devices:   devices,
		exclusive: make(map[exKey]string),
		effects:   make(map[exKey]*Effect),
	}
}

func (e *Engine) nowSeconds() float64 {
	return float64(e.now().UnixNano()) / 1e9
}

func (e *Engine) enqueue(light string, values map[string]any) {
	e.queue = append(e.queue, stateWrite{light: light, values: values})
}

// SetState drops any property whose exclusivity entry belongs to a
// different sender, enqueues the remainder, and returns the accepted
// subset.
func (e *Engine) SetState(sender, lightName string, values map[string]any) map[string]any {
	accepted := make(map[string]any, len(values))
	for p, v := range values {
		if owner, held := e.exclusive[exKey{lightName, p}]; held && owner != sender {
			continue
		}
		accepted[p] = v
	}
	if len(accepted) > 0 {
		e.enqueue(lightName, accepted)
	}
	return accepted
}

// GetState returns the light's current state merged with any writes
// already queued this frame, so later stages of the same frame observe
// earlier ones.
func (e *Engine) GetState(lightName string) map[string]int {
	light, ok := e.lights[lightName]
	if !ok {
		return nil
	}
	merged := make(map[string]int, len(light.State))
	for p, v := range light.State {
		merged[p] = v
	}
	for _, w := range e.queue {
		if w.light != lightName {
			continue
		}
		for p, v := range w.values {
			merged[p] = toInt(v)
		}
	}
	return merged
}

func toInt(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case float64:
		return int(t)
	default:
		return 0
	}
}

// CreateEffect validates the request and, if accepted, registers a new
// Effect for (lightName, args.Function). It fails with ErrExclusive if the
// slot is held by a different sender. If an effect already occupies the
// slot: same sender + override cancels and replaces it; same sender
// without override is a silent no-op (nil, nil); a different sender fails.
func (e *Engine) CreateEffect(sender, lightName string, args EffectArgs, override bool) (*Effect, error) {
	light, ok := e.lights[lightName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLight, lightName)
	}
	def, ok := light.Def.Functions[args.Function]
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrUnknownFunction, args.Function, lightName)
	}
	if args.Duration <= 0 {
		return nil, ErrMissingDuration
	}

	key := exKey{lightName, args.Function}
	if owner, held := e.exclusive[key]; held && owner != sender {
		return nil, ErrExclusive
	}

	if existing, ok := e.effects[key]; ok {
		if existing.Sender != sender {
			return nil, fmt.Errorf("lightengine: effect on %s/%s already held by %s", lightName, args.Function, existing.Sender)
		}
		if !override {
			return nil, nil
		}
		e.cancelEffect(existing, key)
	}

	eff := &Effect{
		ID:         cuid.New(),
		Sender:     sender,
		LightName:  lightName,
		Function:   args.Function,
		StartValue: args.StartValue,
		EndValue:   args.EndValue,
		DurationS:  args.Duration,
		StartTimeS: e.nowSeconds(),
		KeepState:  args.KeepState,
		IsNew:      true,
	}
	if def.Speed != nil {
		eff.SpeedConfig = def.Speed
		if v, ok := light.State["speed"]; ok {
			orig := v
			eff.OrigSpeed = &orig
		}
	}
	e.effects[key] = eff
	return eff, nil
}

// CancelEffectByID cancels the single effect with the given ID, if any.
func (e *Engine) CancelEffectByID(id string) {
	for key, eff := range e.effects {
		if eff.ID == id {
			e.cancelEffect(eff, key)
			return
		}
	}
	e.log.Debug("cancel of unknown effect ignored", "id", id)
}

// CancelEffectsForLight cancels every effect on lightName, optionally
// restricted to a single function.
func (e *Engine) CancelEffectsForLight(lightName, function string) {
	for key, eff := range e.effects {
		if key.Light != lightName {
			continue
		}
		if function != "" && key.Property != function {
			continue
		}
		e.cancelEffect(eff, key)
	}
}

// cancelEffect marks eff cancelled, removes it from the table, and —
// unless KeepState — enqueues a restore of its start value (and original
// speed, if recorded). CancelEffectByID logs and ignores an id that is
// not in the table; cancelEffect itself is only ever called with an
// effect known to be in the table.
func (e *Engine) cancelEffect(eff *Effect, key exKey) {
	eff.IsCancelled = true
	delete(e.effects, key)
	if eff.KeepState {
		return
	}
	restore := map[string]any{eff.Function: int(eff.StartValue)}
	if eff.OrigSpeed != nil {
		restore["speed"] = *eff.OrigSpeed
	}
	e.enqueue(eff.LightName, restore)
}

// SetExclusive acquires or releases exclusivity over the cross product of
// lights x functions (an empty functions list targets the property-less
// slot). Acquisition fails atomically — no slot is touched — if any
// target is already held by a different sender; an empty functions list
// is a property-less lock keyed on an empty property name. Acquiring
// cancels in-flight effects other senders hold on any acquired slot.
func (e *Engine) SetExclusive(sender string, lights, functions []string, acquire bool) error {
	props := functions
	if len(props) == 0 {
		props = []string{""}
	}

	var keys []exKey
	for _, l := range lights {
		for _, p := range props {
			keys = append(keys, exKey{l, p})
		}
	}

	if acquire {
		for _, k := range keys {
			if owner, held := e.exclusive[k]; held && owner != sender {
				return ErrExclusive
			}
		}
		for _, k := range keys {
			if eff, ok := e.effects[k]; ok && eff.Sender != sender {
				e.cancelEffect(eff, k)
			}
			e.exclusive[k] = sender
		}
		return nil
	}

	for _, k := range keys {
		if owner, held := e.exclusive[k]; held && owner == sender {
			delete(e.exclusive, k)
		}
	}
	return nil
}

// Run executes one frame: steps every active effect, flushes the queued
// state writes into the fixtures, renders the diff-minimized DMX frame,
// and attaches the rendered state to the blackboard.
func (e *Engine) Run(bb *blackboard.Board) {
	now := e.nowSeconds()

	for key, eff := range e.effects {
		if eff.IsNew {
			eff.IsNew = false
			if eff.SpeedConfig != nil {
				s := computeSpeed(eff.DurationS, eff.SpeedConfig.FastestMS, math.Abs(eff.EndValue-eff.StartValue))
				e.enqueue(eff.LightName, map[string]any{"speed": s, eff.Function: int(eff.EndValue)})
			} else {
				e.enqueue(eff.LightName, map[string]any{eff.Function: int(eff.StartValue)})
			}
		} else if eff.SpeedConfig == nil {
			e.enqueue(eff.LightName, map[string]any{eff.Function: eff.Value(now)})
		}

		if eff.Done(now) {
			e.cancelEffect(eff, key)
		}
	}

	grouped := make(map[string]map[string]any)
	for _, w := range e.queue {
		dst, ok := grouped[w.light]
		if !ok {
			dst = make(map[string]any)
			grouped[w.light] = dst
		}
		for p, v := range w.values {
			dst[p] = v
		}
	}
	e.queue = nil

	for name, values := range grouped {
		if light, ok := e.lights[name]; ok {
			light.SetState(values)
		} else {
			e.log.Error("state write for unknown light", "light", name)
		}
	}

	lights := make([]*fixture.Light, 0, len(e.lights))
	for _, l := range e.lights {
		lights = append(lights, l)
	}
	fixture.SendBatch(e.devices, lights, e.log)

	rendered := make(map[string]map[string]int, len(e.lights))
	for name, l := range e.lights {
		snap := make(map[string]int, len(l.State))
		for p, v := range l.State {
			snap[p] = v
		}
		rendered[name] = snap
	}
	bb.RenderedState = rendered
}
