package fixture

import (
	"log/slog"
	"testing"
)

func laserType() *TypeDef {
	modeMap := ChoiceMap{
		"dynamic": {Lo: 100, Hi: 100},
		"static":  {Lo: 50, Hi: 50},
	}
	dynamicPatternMap := ChoiceMap{
		"v_line_1": {Lo: 10, Hi: 10},
	}
	staticPatternMap := ChoiceMap{
		"v_line_2": {Lo: 70, Hi: 70},
	}
	return &TypeDef{
		Name:     "Generic4ColorLaser",
		Channels: 2,
		Functions: map[string]FunctionDef{
			"mode": {Channel: 1, Type: TypeStatic, Map: modeMap},
			"pattern": {Channel: 2, Type: TypeStatic, Maps: []ConditionalMap{
				{WhenProperty: "mode", WhenLabel: "dynamic", Map: dynamicPatternMap},
				{WhenProperty: "mode", WhenLabel: "static", Map: staticPatternMap},
			}},
		},
	}
}

func TestSetStateStaticMultiMap(t *testing.T) {
	def := laserType()

	dynamic := NewLight("L1", "default", 1, def, nil, slog.Default())
	dynamic.SetState(map[string]any{"mode": "dynamic", "pattern": "v_line_2"})
	if got := dynamic.State["mode"]; got != 100 {
		t.Errorf("mode = %d, want 100", got)
	}
	if got := dynamic.State["pattern"]; got != 0 {
		t.Errorf("pattern = %d, want 0 (unmatched label leaves default)", got)
	}

	static := NewLight("L2", "default", 1, def, nil, slog.Default())
	static.SetState(map[string]any{"mode": "static", "pattern": "v_line_2"})
	if got := static.State["mode"]; got != 50 {
		t.Errorf("mode = %d, want 50", got)
	}
	if got := static.State["pattern"]; got != 70 {
		t.Errorf("pattern = %d, want 70", got)
	}
}

func simpleType() *TypeDef {
	return &TypeDef{
		Name:     "Simple",
		Channels: 2,
		Functions: map[string]FunctionDef{
			"dim": {Channel: 1, Type: TypeRange},
			"on":  {Channel: 2, Type: TypeBoolean, Reset: ResetRule{Enabled: true, Always: true}},
		},
	}
}

func TestSendBatchDiffMinimization(t *testing.T) {
	def := simpleType()
	light := NewLight("L1", "default", 1, def, nil, slog.Default())
	dev := &fakeDevice{}
	devices := map[string]Device{"default": dev}

	// First frame always ships the full initial state.
	SendBatch(devices, []*Light{light}, nil)
	if len(dev.writes) != 2 {
		t.Fatalf("first frame writes = %d, want 2", len(dev.writes))
	}

	// Idempotent second frame writes nothing and does not re-render.
	dev.writes = nil
	dev.rendered = false
	SendBatch(devices, []*Light{light}, nil)
	if len(dev.writes) != 0 || dev.rendered {
		t.Errorf("idle frame should write nothing, got writes=%v rendered=%v", dev.writes, dev.rendered)
	}

	// Now change one property only.
	light.SetState(map[string]any{"dim": 42})
	dev.writes = nil
	SendBatch(devices, []*Light{light}, nil)
	if len(dev.writes) != 1 {
		t.Fatalf("changed frame writes = %d, want 1 (diff-minimized)", len(dev.writes))
	}
}

func TestMarkSentResetTwoFrameBehavior(t *testing.T) {
	def := simpleType()
	light := NewLight("L1", "default", 1, def, nil, slog.Default())
	light.MarkSent() // settle the initial full-state diff

	light.SetState(map[string]any{"on": true})
	if len(light.DiffState) != 1 {
		t.Fatalf("expected single-property diff, got %v", light.DiffState)
	}
	light.MarkSent() // reset triggers re-init instead of committing LastState

	if len(light.DiffState) == 0 {
		t.Fatal("reset should re-seed a full diff for the following frame")
	}
	if light.State["on"] != 0 {
		t.Errorf("reset should reinitialize on to 0, got %d", light.State["on"])
	}
}

type fakeDevice struct {
	writes   map[int]byte
	rendered bool
}

func (f *fakeDevice) SetChannel(ch int, v byte) {
	if f.writes == nil {
		f.writes = make(map[int]byte)
	}
	f.writes[ch] = v
}

func (f *fakeDevice) Render() error {
	f.rendered = true
	return nil
}
