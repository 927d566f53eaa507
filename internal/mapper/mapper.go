package mapper

import (
	"log/slog"
	"math/rand"
	"slices"
	"sort"

	"github.com/partylights/partylights-go/internal/blackboard"
	"github.com/partylights/partylights-go/internal/lightengine"
	"github.com/partylights/partylights-go/internal/mapper/expr"
)

// engineClient is the subset of *lightengine.Engine the mapper drives;
// narrowed to an interface so tests can stub it without a real engine.
type engineClient interface {
	SetState(sender, lightName string, values map[string]any) map[string]any
	GetState(lightName string) map[string]int
	CreateEffect(sender, lightName string, args lightengine.EffectArgs, override bool) (*lightengine.Effect, error)
	CancelEffectByID(id string)
}

// activeState records the state effect currently applied to a light, so
// the next frame can tell whether it is still the winner, has been
// outranked, or has gone inapplicable.
type activeState struct {
	name      string
	effectIDs []string
	snapshot  map[string]int
}

// Mapper runs the per-light directive program and prioritized state
// effects every frame, writing through an engineClient.
type Mapper struct {
	log      *slog.Logger
	engine   engineClient
	mappings map[string]*LightMapping
	order    []string // sorted light names, for deterministic iteration

	lastUpdate map[string]map[string]float64 // light -> function/property -> seconds
	active     map[string]*activeState       // light -> applied state effect, if any

	rng *rand.Rand
}

// New builds a Mapper over already-Compile()d mappings.
func New(mappings map[string]*LightMapping, engine engineClient, log *slog.Logger, seed int64) *Mapper {
	if log == nil {
		log = slog.Default()
	}
	order := make([]string, 0, len(mappings))
	lastUpdate := make(map[string]map[string]float64, len(mappings))
	for name, m := range mappings {
		order = append(order, name)
		lu := make(map[string]float64, len(m.Program))
		for _, d := range m.Program {
			lu[d.Function] = noUpdateSentinel
		}
		lastUpdate[name] = lu
	}
	sort.Strings(order)

	return &Mapper{
		log:        log,
		engine:     engine,
		mappings:   mappings,
		order:      order,
		lastUpdate: lastUpdate,
		active:     make(map[string]*activeState),
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// Run executes the state-effect phase then the directive phase for
// every configured light, in a fixed order.
func (m *Mapper) Run(bb *blackboard.Board) {
	for _, light := range m.order {
		mapping := m.mappings[light]
		env := buildEnv(bb, m.lastUpdate[light], bb.FrameTime)
		m.runStateEffects(light, mapping, env)
		m.runDirectives(light, mapping, bb)
	}
}

func sender(light string) string { return "mapper:" + light }

func (m *Mapper) runStateEffects(light string, mapping *LightMapping, env expr.Env) {
	var applicable *StateEffect
	for i := range mapping.StateEffects {
		se := &mapping.StateEffects[i]
		if se.predicate == nil {
			continue
		}
		ok, err := expr.Eval(se.predicate, env)
		if err != nil {
			m.log.Error("state effect predicate failed", "light", light, "state_effect", se.Name, "error", err)
			continue
		}
		if ok {
			applicable = se
			break
		}
	}

	cur := m.active[light]
	switch {
	case cur != nil && applicable != nil && cur.name == applicable.Name:
		// already the winner; its sub-effects run on their own.
	case cur != nil:
		m.unapplyStateEffect(light, cur)
		delete(m.active, light)
		if applicable != nil {
			m.applyStateEffect(light, applicable)
		}
	case applicable != nil:
		m.applyStateEffect(light, applicable)
	}
}

func (m *Mapper) applyStateEffect(light string, se *StateEffect) {
	snapshot := make(map[string]int, len(se.Reset))
	if len(se.Reset) > 0 {
		current := m.engine.GetState(light)
		for _, p := range se.Reset {
			snapshot[p] = current[p]
		}
	}

	var ids []string
	for prop, spec := range se.Effects {
		start := spec.StartValue
		if spec.StartIsRandom {
			start = m.rng.Intn(256)
		}
		end := spec.EndValue
		if spec.EndIsRandom {
			end = m.rng.Intn(256)
		}

		if spec.Duration > 0 {
			eff, err := m.engine.CreateEffect(sender(light), light, lightengine.EffectArgs{
				Function:   prop,
				StartValue: float64(start),
				EndValue:   float64(end),
				Duration:   spec.Duration,
				KeepState:  spec.KeepState,
			}, true)
			if err != nil {
				m.log.Error("state effect create effect failed", "light", light, "state_effect", se.Name, "property", prop, "error", err)
				continue
			}
			if eff != nil {
				ids = append(ids, eff.ID)
			}
		} else {
			m.engine.SetState(sender(light), light, map[string]any{prop: end})
		}
	}

	m.active[light] = &activeState{name: se.Name, effectIDs: ids, snapshot: snapshot}
}

func (m *Mapper) unapplyStateEffect(light string, cur *activeState) {
	for _, id := range cur.effectIDs {
		m.engine.CancelEffectByID(id)
	}
	if len(cur.snapshot) > 0 {
		values := make(map[string]any, len(cur.snapshot))
		for p, v := range cur.snapshot {
			values[p] = v
		}
		m.engine.SetState(sender(light), light, values)
	}
}

func (m *Mapper) runDirectives(light string, mapping *LightMapping, bb *blackboard.Board) {
	nowS := float64(bb.FrameTime.UnixNano()) / 1e9

	for _, d := range mapping.Program {
		triggered, triggerValue, peak := evalTrigger(d, bb)
		if !triggered {
			continue
		}

		cd, ok := mapping.Cooldown[d.Function]
		if !ok {
			cd = 1.0
		}
		if last := m.lastUpdate[light][d.Function]; nowS-last < cd {
			continue
		}

		scaleValue := triggerValue
		if d.ScaleSrc == "frequency" {
			scaleValue = peak
		}

		val := computeValue(d, triggerValue, m.rng)
		val = applyRange(d, val, scaleValue)
		val = clampByte(val)

		if d.Duration > 0 {
			start := m.engine.GetState(light)[d.Function]
			eff, err := m.engine.CreateEffect(sender(light), light, lightengine.EffectArgs{
				Function:   d.Function,
				StartValue: float64(start),
				EndValue:   float64(val),
				Duration:   d.Duration,
				KeepState:  d.KeepState,
			}, true)
			if err != nil {
				m.log.Error("directive create effect failed", "light", light, "function", d.Function, "error", err)
				continue
			}
			_ = eff
		} else {
			m.engine.SetState(sender(light), light, map[string]any{d.Function: val})
		}

		m.lastUpdate[light][d.Function] = nowS
		m.propagateLinks(light, mapping, d.Function, val)
	}
}

func (m *Mapper) propagateLinks(light string, mapping *LightMapping, prop string, val int) {
	for linked, spec := range mapping.Links {
		lv := val
		if !spec.Passthrough && slices.Contains(spec.Invert, prop) {
			lv = 255 - val
		}
		m.engine.SetState(sender(light), linked, map[string]any{prop: lv})
	}
}

// evalTrigger reports whether a directive fires this frame, the value
// its trigger produced, and the frequency-domain peak position of its
// selected bins (0 for non-frequency triggers). A negative threshold
// inverts the frequency comparison: trigger iff the aggregate falls
// below its absolute value, instead of at or above it.
func evalTrigger(d Directive, bb *blackboard.Board) (bool, float64, float64) {
	switch d.Trigger {
	case TriggerOnset:
		if bb.IsOnset {
			return true, 1.0, 0
		}
		return false, 0, 0
	case TriggerBeat:
		if bb.IsBeat {
			return true, 1.0, 0
		}
		return false, 0, 0
	case TriggerFrequency:
		selected := selectBins(bb.Audio, d.Bins)
		agg := aggregate(selected, d.Aggregate)
		peak := freqPeak(selected)
		if d.Threshold < 0 {
			return agg < -d.Threshold, agg, peak
		}
		return agg >= d.Threshold, agg, peak
	}
	return false, 0, 0
}

func selectBins(audio []float64, bins []int) []float64 {
	if bins == nil {
		return audio
	}
	selected := make([]float64, 0, len(bins))
	for _, i := range bins {
		if i >= 0 && i < len(audio) {
			selected = append(selected, audio[i])
		}
	}
	return selected
}

func aggregate(selected []float64, mode Aggregate) float64 {
	if len(selected) == 0 {
		return 0
	}
	if mode == AggregateAvg {
		sum := 0.0
		for _, v := range selected {
			sum += v
		}
		return sum / float64(len(selected))
	}
	max := selected[0]
	for _, v := range selected[1:] {
		if v > max {
			max = v
		}
	}
	return max
}

func argmax(selected []float64) int {
	idx := 0
	max := selected[0]
	for i, v := range selected[1:] {
		if v > max {
			max, idx = v, i+1
		}
	}
	return idx
}

// freqPeak is 1 - argmax/len: close to 1 for energy concentrated in
// the low bins, close to 0 for energy concentrated in the high bins.
func freqPeak(selected []float64) float64 {
	if len(selected) == 0 {
		return 0
	}
	return 1 - float64(argmax(selected))/float64(len(selected))
}

func computeValue(d Directive, triggerValue float64, rng *rand.Rand) int {
	switch d.ValueMode {
	case ValueRandom:
		return rng.Intn(256)
	case ValueLiteral:
		return clampByte(d.ValueLit)
	default:
		return clampByte(int(triggerValue * 255))
	}
}

func applyRange(d Directive, val int, scaleValue float64) int {
	switch d.RangeMode {
	case RangeScaled:
		return int(float64(val) * scaleValue)
	case RangeClamp:
		if val < d.RangeLo {
			return d.RangeLo
		}
		if val > d.RangeHi {
			return d.RangeHi
		}
		return val
	default:
		return val
	}
}

func clampByte(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}
