package expr

import "testing"

func TestBasicComparisonsAndConnectives(t *testing.T) {
	cases := []struct {
		src  string
		vars map[string]Value
		want bool
	}{
		{"is_beat", map[string]Value{"is_beat": {Kind: KindBool, Bool: true}}, true},
		{"is_beat && is_onset", map[string]Value{
			"is_beat":  {Kind: KindBool, Bool: true},
			"is_onset": {Kind: KindBool, Bool: false},
		}, false},
		{"now() - last > 5", map[string]Value{"last": {Kind: KindNumber, Num: 2}}, true},
		{"pitch == 60", map[string]Value{"pitch": {Kind: KindNull}}, false},
		{"!is_beat", map[string]Value{"is_beat": {Kind: KindBool, Bool: false}}, true},
	}

	for _, c := range cases {
		n, err := Parse(c.src)
		if err != nil {
			t.Fatalf("Parse(%q): %v", c.src, err)
		}
		got, err := Eval(n, Env{Vars: c.vars, Now: 10})
		if err != nil {
			t.Fatalf("Eval(%q): %v", c.src, err)
		}
		if got != c.want {
			t.Errorf("Eval(%q) = %v, want %v", c.src, got, c.want)
		}
	}
}

func TestSubscriptIndexing(t *testing.T) {
	n, err := Parse("audio[0] > 0.5")
	if err != nil {
		t.Fatal(err)
	}
	env := Env{
		Vars: map[string]Value{"audio": {Kind: KindString, Str: "audio"}},
		Index: func(container, key Value) (Value, error) {
			if container.Str == "audio" && key.Num == 0 {
				return Value{Kind: KindNumber, Num: 0.9}, nil
			}
			return Value{Kind: KindNull}, nil
		},
	}
	got, err := Eval(n, env)
	if err != nil {
		t.Fatal(err)
	}
	if !got {
		t.Error("expected audio[0] > 0.5 to be true")
	}
}
