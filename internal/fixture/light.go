package fixture

import (
	"log/slog"
)

// Light is one configured fixture: its type definition, DMX address, and
// mutable current/last/diff state.
type Light struct {
	Name       string
	TypeName   string
	DeviceName string
	Address    int

	Def        *TypeDef
	Initialize map[string]int

	State     map[string]int
	LastState map[string]int
	DiffState map[string]int

	log *slog.Logger
}

// NewLight constructs a Light and runs its initial state assignment. On
// construction, DiffState is seeded with every property so the first
// send_batch ships the full initial frame.
func NewLight(name, deviceName string, address int, def *TypeDef, initialize map[string]int, log *slog.Logger) *Light {
	if deviceName == "" {
		deviceName = "default"
	}
	if log == nil {
		log = slog.Default()
	}
	l := &Light{
		Name:       name,
		TypeName:   def.Name,
		DeviceName: deviceName,
		Address:    address,
		Def:        def,
		Initialize: initialize,
		log:        log,
	}
	l.initState()
	return l
}

func (l *Light) initState() {
	state := make(map[string]int, len(l.Def.Functions))
	for p := range l.Def.Functions {
		if v, ok := l.Initialize[p]; ok {
			state[p] = v
		} else {
			state[p] = 0
		}
	}
	l.State = state
	last := make(map[string]int, len(state))
	diff := make(map[string]int, len(state))
	for p, v := range state {
		last[p] = v
		diff[p] = v // on init, pretend everything changed
	}
	l.LastState = last
	l.DiffState = diff
}

// labelFor returns the choice label the property's own (non-conditional)
// map assigns to its current state value.
func (l *Light) labelFor(property string) (string, bool) {
	def, ok := l.Def.Functions[property]
	if !ok || def.Map == nil {
		return "", false
	}
	return def.Map.Label(l.State[property])
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

// SetState applies a batch of property writes, coercing each by its
// function's declared type, then rebuilds DiffState against LastState.
// Unknown function names are logged and ignored. Static functions backed
// by a Maps list are resolved after every other property in the batch has
// landed, so a mode/pattern pair set in the same call resolves correctly.
func (l *Light) SetState(values map[string]any) {
	var deferred []string

	for p, v := range values {
		def, ok := l.Def.Functions[p]
		if !ok {
			l.log.Error("unknown function for light", "light", l.Name, "function", p)
			continue
		}

		switch def.Type {
		case TypeBoolean:
			l.State[p] = boolToInt(v)

		case TypeStatic:
			if s, isString := v.(string); isString {
				if def.Map != nil {
					if r, ok := def.Map[s]; ok {
						l.State[p] = r.Lo
					} else {
						l.log.Error("value not in property map", "light", l.Name, "function", p, "value", s)
					}
				} else if len(def.Maps) > 0 {
					deferred = append(deferred, p)
				} else {
					l.log.Error("can't set value for function with no map", "light", l.Name, "function", p, "value", s)
				}
			} else {
				// Non-string numeric write bypasses the choice map entirely.
				l.State[p] = clampByte(toInt(v))
			}

		default: // TypeRange or empty
			l.State[p] = clampByte(toInt(v))
		}
	}

	for _, p := range deferred {
		label, _ := values[p].(string)
		def := l.Def.Functions[p]
		for _, cm := range def.Maps {
			whenLabel, ok := l.labelFor(cm.WhenProperty)
			if ok && whenLabel == cm.WhenLabel {
				if r, ok := cm.Map[label]; ok {
					l.State[p] = r.Lo
				}
				break
			}
		}
	}

	l.rebuildDiff()
}

func (l *Light) rebuildDiff() {
	l.DiffState = make(map[string]int)
	for p, v := range l.State {
		if v != l.LastState[p] {
			l.DiffState[p] = v
		}
	}
}

func boolToInt(v any) int {
	switch t := v.(type) {
	case bool:
		if t {
			return 1
		}
		return 0
	default:
		if toInt(v) != 0 {
			return 1
		}
		return 0
	}
}

func toInt(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int32:
		return int(t)
	case int64:
		return int(t)
	case float64:
		return int(t)
	case float32:
		return int(t)
	case bool:
		if t {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// DMX returns the absolute channel -> value mapping for this frame's
// changed properties only, honoring per-function invert. Properties
// absent from DiffState are not resent, keeping a send_batch minimal.
func (l *Light) DMX() map[int]byte {
	out := make(map[int]byte, len(l.DiffState))
	for fn, v := range l.DiffState {
		def, ok := l.Def.Functions[fn]
		if !ok {
			continue
		}
		if def.Invert {
			v = 255 - v
		}
		out[l.Address-1+def.Channel] = byte(clampByte(v))
	}
	return out
}

// MarkSent finalizes the current frame's diff. If any changed property
// carries a reset rule and its new value satisfies it, the fixture is
// re-initialized instead of committing LastState — the reset byte ships
// this frame, and the re-initialized full state ships next frame.
func (l *Light) MarkSent() {
	for p, v := range l.DiffState {
		def, ok := l.Def.Functions[p]
		if !ok || !def.Reset.Enabled {
			continue
		}
		if def.Reset.Always {
			if v != 0 {
				l.initState()
				return
			}
			continue
		}
		if v >= def.Reset.Range.Lo && v <= def.Reset.Range.Hi {
			l.initState()
			return
		}
	}

	last := make(map[string]int, len(l.State))
	for p, v := range l.State {
		last[p] = v
	}
	l.LastState = last
	l.DiffState = map[string]int{}
}
