package mapper

import (
	"testing"
	"time"

	"github.com/partylights/partylights-go/internal/blackboard"
	"github.com/partylights/partylights-go/internal/lightengine"
)

type fakeEngine struct {
	state     map[string]map[string]int
	created   []lightengine.EffectArgs
	cancelled []string
	nextID    int
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{state: make(map[string]map[string]int)}
}

func (f *fakeEngine) SetState(sender, lightName string, values map[string]any) map[string]any {
	dst, ok := f.state[lightName]
	if !ok {
		dst = make(map[string]int)
		f.state[lightName] = dst
	}
	for p, v := range values {
		switch n := v.(type) {
		case int:
			dst[p] = n
		case float64:
			dst[p] = int(n)
		}
	}
	return values
}

func (f *fakeEngine) GetState(lightName string) map[string]int {
	out := make(map[string]int)
	for p, v := range f.state[lightName] {
		out[p] = v
	}
	return out
}

func (f *fakeEngine) CreateEffect(sender, lightName string, args lightengine.EffectArgs, override bool) (*lightengine.Effect, error) {
	f.created = append(f.created, args)
	f.nextID++
	id := "eff-" + string(rune('0'+f.nextID))
	return &lightengine.Effect{ID: id, Sender: sender, LightName: lightName, Function: args.Function}, nil
}

func (f *fakeEngine) CancelEffectByID(id string) {
	f.cancelled = append(f.cancelled, id)
}

func TestDirectiveOnsetTriggersImmediateSetState(t *testing.T) {
	mappings := map[string]*LightMapping{
		"par1": {
			LightName: "par1",
			Program: []Directive{
				{Trigger: TriggerOnset, Function: "red", ValueMode: ValueLiteral, ValueLit: 200},
			},
			Cooldown: map[string]float64{},
		},
	}
	if err := Compile(mappings); err != nil {
		t.Fatal(err)
	}
	eng := newFakeEngine()
	m := New(mappings, eng, nil, 1)

	bb := blackboard.New(time.Unix(100, 0))
	bb.IsOnset = true
	m.Run(bb)

	if got := eng.state["par1"]["red"]; got != 200 {
		t.Errorf("red = %d, want 200", got)
	}
}

func TestDirectiveCooldownSuppressesRetrigger(t *testing.T) {
	mappings := map[string]*LightMapping{
		"par1": {
			LightName: "par1",
			Program: []Directive{
				{Trigger: TriggerBeat, Function: "strobe", ValueMode: ValueLiteral, ValueLit: 255},
			},
			Cooldown: map[string]float64{"strobe": 5},
		},
	}
	if err := Compile(mappings); err != nil {
		t.Fatal(err)
	}
	eng := newFakeEngine()
	m := New(mappings, eng, nil, 1)

	bb := blackboard.New(time.Unix(100, 0))
	bb.IsBeat = true
	m.Run(bb)
	if got := eng.state["par1"]["strobe"]; got != 255 {
		t.Fatalf("expected first beat to set strobe to 255, got %d", got)
	}

	bb2 := blackboard.New(time.Unix(102, 0))
	bb2.IsBeat = true
	eng.state["par1"]["strobe"] = 0 // prove the second call is a no-op, not a re-write of the same value
	m.Run(bb2)
	if got := eng.state["par1"]["strobe"]; got != 0 {
		t.Errorf("cooldown should have suppressed the retrigger, got strobe = %d", got)
	}
}

func TestStateEffectAppliesWhilePredicateHolds(t *testing.T) {
	mappings := map[string]*LightMapping{
		"par1": {
			LightName: "par1",
			StateEffects: []StateEffect{
				{
					Name:     "flash",
					Light:    "par1",
					WhenText: "is_beat",
					Effects: map[string]EffectSpec{
						"dimmer": {StartValue: 255, EndValue: 0, Duration: 0.5},
					},
				},
			},
		},
	}
	if err := Compile(mappings); err != nil {
		t.Fatal(err)
	}
	eng := newFakeEngine()
	m := New(mappings, eng, nil, 1)

	bb := blackboard.New(time.Unix(100, 0))
	bb.IsBeat = true
	m.Run(bb)

	if len(eng.created) != 1 {
		t.Fatalf("expected one effect created, got %d", len(eng.created))
	}
	if eng.created[0].Function != "dimmer" || eng.created[0].Duration != 0.5 {
		t.Errorf("unexpected effect args: %+v", eng.created[0])
	}
	if _, ok := m.active["par1"]; !ok {
		t.Error("expected state effect to remain active")
	}
}

func TestStateEffectUnappliesWhenNoLongerApplicable(t *testing.T) {
	mappings := map[string]*LightMapping{
		"par1": {
			LightName: "par1",
			StateEffects: []StateEffect{
				{
					Name:     "flash",
					Light:    "par1",
					WhenText: "is_beat",
					Reset:    []string{"dimmer"},
					Effects: map[string]EffectSpec{
						"dimmer": {StartValue: 255, EndValue: 0, Duration: 0.5},
					},
				},
			},
		},
	}
	if err := Compile(mappings); err != nil {
		t.Fatal(err)
	}
	eng := newFakeEngine()
	eng.state["par1"] = map[string]int{"dimmer": 128}
	m := New(mappings, eng, nil, 1)

	bb := blackboard.New(time.Unix(100, 0))
	bb.IsBeat = true
	m.Run(bb)

	bb2 := blackboard.New(time.Unix(101, 0))
	bb2.IsBeat = false
	m.Run(bb2)

	if len(eng.cancelled) != 1 {
		t.Fatalf("expected the effect to be cancelled, got %d cancellations", len(eng.cancelled))
	}
	if got := eng.state["par1"]["dimmer"]; got != 128 {
		t.Errorf("expected dimmer restored to snapshot 128, got %d", got)
	}
	if _, ok := m.active["par1"]; ok {
		t.Error("expected no active state effect after predicate went false")
	}
}

func TestLinkInvertPropagatesToLinkedLight(t *testing.T) {
	mappings := map[string]*LightMapping{
		"left": {
			LightName: "left",
			Program: []Directive{
				{Trigger: TriggerOnset, Function: "pan", ValueMode: ValueLiteral, ValueLit: 200},
			},
			Links: map[string]LinkSpec{
				"right": {Invert: []string{"pan"}},
			},
		},
	}
	if err := Compile(mappings); err != nil {
		t.Fatal(err)
	}
	eng := newFakeEngine()
	m := New(mappings, eng, nil, 1)

	bb := blackboard.New(time.Unix(100, 0))
	bb.IsOnset = true
	m.Run(bb)

	if got := eng.state["right"]["pan"]; got != 55 {
		t.Errorf("right pan = %d, want 55 (255-200)", got)
	}
}
