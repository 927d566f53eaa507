package lightengine

import (
	"log/slog"
	"testing"
	"time"

	"github.com/partylights/partylights-go/internal/blackboard"
	"github.com/partylights/partylights-go/internal/fixture"
)

func panLight(t *testing.T) *Engine {
	t.Helper()
	def := &fixture.TypeDef{
		Name:     "Mover",
		Channels: 2,
		Functions: map[string]fixture.FunctionDef{
			"dim": {Channel: 1, Type: fixture.TypeRange},
			"pan": {Channel: 2, Type: fixture.TypeRange, Speed: &fixture.SpeedRange{SlowestMS: 25, FastestMS: 1}},
		},
	}
	light := fixture.NewLight("L", "default", 1, def, nil, slog.Default())
	return New(
		map[string]*fixture.Light{"L": light},
		map[string]fixture.Device{"default": newFakeSink()},
		slog.Default(),
		nil,
	)
}

type fakeSink struct{ writes map[int]byte }

func newFakeSink() *fakeSink { return &fakeSink{writes: map[int]byte{}} }
func (f *fakeSink) SetChannel(ch int, v byte) { f.writes[ch] = v }
func (f *fakeSink) Render() error             { return nil }

func TestExclusivityDropsConflictingProperty(t *testing.T) {
	def := &fixture.TypeDef{
		Name:     "Two",
		Channels: 2,
		Functions: map[string]fixture.FunctionDef{
			"dim": {Channel: 1, Type: fixture.TypeRange},
			"pan": {Channel: 2, Type: fixture.TypeRange},
		},
	}
	light := fixture.NewLight("L", "default", 1, def, nil, slog.Default())
	eng := New(map[string]*fixture.Light{"L": light}, map[string]fixture.Device{"default": newFakeSink()}, slog.Default(), nil)

	if err := eng.SetExclusive("s1", []string{"L"}, []string{"dim"}, true); err != nil {
		t.Fatalf("s1 acquire: %v", err)
	}

	accepted := eng.SetState("s2", "L", map[string]any{"dim": 100, "pan": 50})
	if _, ok := accepted["dim"]; ok {
		t.Error("s2 should not be able to write dim while s1 holds exclusivity")
	}
	if v, ok := accepted["pan"]; !ok || v != 50 {
		t.Errorf("s2 should be able to write pan, accepted=%v", accepted)
	}

	if err := eng.SetExclusive("s2", []string{"L"}, []string{"dim"}, true); err == nil {
		t.Error("s2 acquiring dim should fail while s1 holds it")
	}

	bb := blackboard.New(time.Now())
	eng.Run(bb)

	if light.State["pan"] != 50 {
		t.Errorf("pan = %d, want 50", light.State["pan"])
	}
	if light.State["dim"] != 0 {
		t.Errorf("dim = %d, want unchanged (0)", light.State["dim"])
	}
}

func TestSpeedEncodedEffect(t *testing.T) {
	eng := panLight(t)

	eff, err := eng.CreateEffect("x", "L", EffectArgs{Function: "pan", StartValue: 0, EndValue: 255, Duration: 1.0}, false)
	if err != nil {
		t.Fatalf("CreateEffect: %v", err)
	}
	if eff == nil {
		t.Fatal("expected a non-nil effect")
	}

	bb := blackboard.New(time.Now())
	eng.Run(bb)

	light := bb.RenderedState["L"]
	if light["pan"] != 255 {
		t.Errorf("pan after first frame = %d, want 255", light["pan"])
	}

	// Subsequent frames before duration elapses write nothing further for
	// a speed-encoded function (the fixture performs the move itself).
	eng.Run(bb)
	if got := bb.RenderedState["L"]["pan"]; got != 255 {
		t.Errorf("pan should remain 255 mid-move, got %d", got)
	}
}

func TestCreateEffectRejectsMissingDuration(t *testing.T) {
	eng := panLight(t)
	if _, err := eng.CreateEffect("x", "L", EffectArgs{Function: "pan", Duration: 0}, false); err != ErrMissingDuration {
		t.Errorf("err = %v, want ErrMissingDuration", err)
	}
}
