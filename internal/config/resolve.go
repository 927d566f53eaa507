package config

import (
	"fmt"
	"log/slog"

	"github.com/partylights/partylights-go/internal/dmxsink"
	"github.com/partylights/partylights-go/internal/fixture"
	"github.com/partylights/partylights-go/internal/mapper"
)

// BuildDevices constructs one dmxsink.Device per configured DMX device.
func (c *Config) BuildDevices(log *slog.Logger) (map[string]fixture.Device, error) {
	devices := make(map[string]fixture.Device, len(c.DMXDevices))
	for _, d := range c.DMXDevices {
		switch d.Kind {
		case "sink":
			devices[d.Name] = dmxsink.NewNoopSink(d.Name)
		case "vsink":
			devices[d.Name] = dmxsink.NewLoggingSink(d.Name, log)
		case "udp":
			devices[d.Name] = dmxsink.NewRawUDPDevice(d.Name, d.Address, 5, log)
		default:
			return nil, fmt.Errorf("config: device %q: unsupported kind %q", d.Name, d.Kind)
		}
	}
	return devices, nil
}

// BuildTypeDefs converts every configured fixture type into a
// fixture.TypeDef.
func (c *Config) BuildTypeDefs() (map[string]*fixture.TypeDef, error) {
	defs := make(map[string]*fixture.TypeDef, len(c.LightTypes))
	for name, t := range c.LightTypes {
		def := &fixture.TypeDef{
			Name:      name,
			Channels:  t.Channels,
			Functions: make(map[string]fixture.FunctionDef, len(t.Functions)),
		}
		for fname, f := range t.Functions {
			fd := fixture.FunctionDef{
				Channel: f.Channel,
				Invert:  f.Invert,
				Type:    fixture.FunctionType(f.Type),
				Map:     toChoiceMap(f.Map),
			}
			for _, cm := range f.Maps {
				fd.Maps = append(fd.Maps, fixture.ConditionalMap{
					WhenProperty: cm.WhenProperty,
					WhenLabel:    cm.WhenLabel,
					Map:          toChoiceMap(cm.Map),
				})
			}
			if f.Reset != nil {
				fd.Reset = fixture.ResetRule{
					Enabled: true,
					Always:  f.Reset.Always,
					Range:   fixture.ChoiceRange{Lo: f.Reset.Range[0], Hi: f.Reset.Range[1]},
				}
			}
			if f.Speed != nil {
				fd.Speed = &fixture.SpeedRange{SlowestMS: f.Speed.SlowestMS, FastestMS: f.Speed.FastestMS}
			}
			def.Functions[fname] = fd
		}
		defs[name] = def
	}
	return defs, nil
}

func toChoiceMap(raw map[string][2]int) fixture.ChoiceMap {
	if raw == nil {
		return nil
	}
	m := make(fixture.ChoiceMap, len(raw))
	for label, r := range raw {
		m[label] = fixture.ChoiceRange{Lo: r[0], Hi: r[1]}
	}
	return m
}

// BuildLights constructs one fixture.Light per configured light,
// against the already-built type table.
func (c *Config) BuildLights(defs map[string]*fixture.TypeDef, log *slog.Logger) (map[string]*fixture.Light, error) {
	lights := make(map[string]*fixture.Light, len(c.Lights))
	for _, l := range c.Lights {
		def, ok := defs[l.Type]
		if !ok {
			return nil, fmt.Errorf("config: light %q: unknown type %q", l.Name, l.Type)
		}
		lights[l.Name] = fixture.NewLight(l.Name, l.Device, l.StartChannel, def, nil, log)
	}
	return lights, nil
}

// BuildMappings converts every configured mapping program into a
// mapper.LightMapping, expanding bins and resolving random-value
// markers. Lights with no mapping entry simply have no program.
func (c *Config) BuildMappings() (map[string]*mapper.LightMapping, error) {
	out := make(map[string]*mapper.LightMapping, len(c.Mapping))
	for lightName, y := range c.Mapping {
		m := &mapper.LightMapping{LightName: lightName, Cooldown: y.Cooldown}

		for _, dy := range y.Program {
			d, err := buildDirective(dy)
			if err != nil {
				return nil, fmt.Errorf("config: mapping %q: %w", lightName, err)
			}
			m.Program = append(m.Program, d)
		}

		if len(y.Links) > 0 {
			m.Links = make(map[string]mapper.LinkSpec, len(y.Links))
			for linked, ly := range y.Links {
				m.Links[linked] = mapper.LinkSpec{Passthrough: len(ly.Invert) == 0, Invert: ly.Invert}
			}
		}

		for _, sey := range y.StateEffects {
			se, err := buildStateEffect(lightName, sey)
			if err != nil {
				return nil, err
			}
			m.StateEffects = append(m.StateEffects, se)
		}

		out[lightName] = m
	}
	return out, nil
}

func buildDirective(dy DirectiveYAML) (mapper.Directive, error) {
	d := mapper.Directive{
		Trigger:   mapper.Trigger(dy.Trigger),
		Aggregate: mapper.AggregateMax,
		Threshold: dy.Threshold,
		ScaleSrc:  dy.ScaleSrc,
		Function:  dy.Function,
		Duration:  dy.Duration,
		KeepState: dy.KeepState,
	}
	if dy.Aggregate == string(mapper.AggregateAvg) {
		d.Aggregate = mapper.AggregateAvg
	}

	bins, err := expandBins(dy.Bins)
	if err != nil {
		return d, fmt.Errorf("function %q: %w", dy.Function, err)
	}
	d.Bins = bins

	switch r := dy.Range.(type) {
	case nil:
		// no range clause: the computed value is used as-is.
	case string:
		if r != "scaled" {
			return d, fmt.Errorf("function %q: range string must be \"scaled\"", dy.Function)
		}
		d.RangeMode = mapper.RangeScaled
	case []any:
		if len(r) != 2 {
			return d, fmt.Errorf("function %q: range pair must have exactly 2 elements", dy.Function)
		}
		d.RangeMode = mapper.RangeClamp
		d.RangeLo, d.RangeHi = toInt(r[0]), toInt(r[1])
	default:
		return d, fmt.Errorf("function %q: unsupported range type %T", dy.Function, dy.Range)
	}

	switch v := dy.Value.(type) {
	case nil:
		d.ValueMode = mapper.ValueTriggerScaled
	case string:
		if v != "random" {
			return d, fmt.Errorf("function %q: value must be \"random\" or a number", dy.Function)
		}
		d.ValueMode = mapper.ValueRandom
	case int:
		d.ValueMode, d.ValueLit = mapper.ValueLiteral, v
	case float64:
		d.ValueMode, d.ValueLit = mapper.ValueLiteral, int(v)
	default:
		return d, fmt.Errorf("function %q: unsupported value type %T", dy.Function, dy.Value)
	}

	return d, nil
}

// expandBins turns a YAML bins clause into a flat bin-index list: a
// bare number, or a list whose entries are bare numbers or [lo, hi]
// pairs (inclusive ranges). A top-level [a, b] list is two bare
// indices, not a range. A nil clause selects every bin.
func expandBins(raw any) ([]int, error) {
	if raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case int:
		return []int{v}, nil
	case float64:
		return []int{int(v)}, nil
	case []any:
		var out []int
		for _, item := range v {
			switch e := item.(type) {
			case int:
				out = append(out, e)
			case float64:
				out = append(out, int(e))
			case []any:
				if len(e) != 2 {
					return nil, fmt.Errorf("bins: range entries must have exactly 2 elements")
				}
				lo, hi := toInt(e[0]), toInt(e[1])
				for i := lo; i <= hi; i++ {
					out = append(out, i)
				}
			default:
				return nil, fmt.Errorf("bins: unsupported entry type %T", item)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("bins: unsupported type %T", raw)
	}
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}

func buildStateEffect(lightName string, sey StateEffectYAML) (mapper.StateEffect, error) {
	se := mapper.StateEffect{
		Name:     sey.Name,
		Light:    lightName,
		WhenText: sey.When,
		Reset:    sey.Reset,
		Priority: sey.Priority,
		Effects:  make(map[string]mapper.EffectSpec, len(sey.Effects)),
	}
	for prop, ey := range sey.Effects {
		spec := mapper.EffectSpec{Duration: ey.Duration, KeepState: ey.KeepState}

		switch v := ey.Start.(type) {
		case string:
			if v != "random" {
				return se, fmt.Errorf("state effect %q: start must be \"random\" or a number", sey.Name)
			}
			spec.StartIsRandom = true
		case int:
			spec.StartValue = v
		case float64:
			spec.StartValue = int(v)
		}

		switch v := ey.End.(type) {
		case string:
			if v != "random" {
				return se, fmt.Errorf("state effect %q: end must be \"random\" or a number", sey.Name)
			}
			spec.EndIsRandom = true
		case int:
			spec.EndValue = v
		case float64:
			spec.EndValue = int(v)
		}

		se.Effects[prop] = spec
	}
	return se, nil
}
