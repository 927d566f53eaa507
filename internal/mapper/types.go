// Package mapper interprets the per-light mapping DSL: a per-frame
// directive program driven by audio triggers, plus prioritized
// audio-triggered state effects, both writing through the light engine
// under per-property cooldowns.
package mapper

import "github.com/partylights/partylights-go/internal/mapper/expr"

// Trigger names a directive's activation source.
type Trigger string

const (
	TriggerOnset     Trigger = "onset"
	TriggerBeat      Trigger = "beat"
	TriggerFrequency Trigger = "frequency"
)

// Aggregate names how a frequency directive reduces its selected bins.
type Aggregate string

const (
	AggregateMax Aggregate = "max"
	AggregateAvg Aggregate = "avg"
)

// RangeMode discriminates a directive's Range clause.
type RangeMode int

const (
	RangeNone RangeMode = iota
	RangeScaled
	RangeClamp
)

// ValueMode discriminates a directive's Value clause.
type ValueMode int

const (
	ValueTriggerScaled ValueMode = iota // absent: trigger_value * 255
	ValueRandom
	ValueLiteral
)

// Directive is one entry of a light's per-frame Program.
type Directive struct {
	Trigger    Trigger
	Bins       []int // expanded flat bin indices; nil selects every bin
	Aggregate  Aggregate
	Threshold  float64
	ScaleSrc   string // "" or "frequency"
	RangeMode  RangeMode
	RangeLo    int
	RangeHi    int
	Function   string
	ValueMode  ValueMode
	ValueLit   int
	Duration   float64 // 0 means "no duration": a plain set_state
	KeepState  bool
}

// EffectSpec is one property's sub-effect within a StateEffect.
type EffectSpec struct {
	StartIsRandom bool
	StartValue    int
	EndIsRandom   bool
	EndValue      int
	Duration      float64
	KeepState     bool
}

// StateEffect is a named, prioritized, audio-triggered multi-property
// envelope for one light.
type StateEffect struct {
	Name      string
	Light     string
	WhenText  string
	predicate expr.Node
	Effects   map[string]EffectSpec
	Reset     []string
	Priority  int
	KeepState bool
}

// LinkSpec describes how a light's dispatched state propagates to a
// linked light: Invert lists the properties whose value should be
// replaced with 255-v; Passthrough means the link config was bare `true`.
type LinkSpec struct {
	Passthrough bool
	Invert      []string
}

// LightMapping is one light's resolved mapping program.
type LightMapping struct {
	LightName    string
	Program      []Directive
	Cooldown     map[string]float64
	Links        map[string]LinkSpec
	StateEffects []StateEffect
}
