package mapper

import (
	"time"

	"github.com/partylights/partylights-go/internal/blackboard"
	"github.com/partylights/partylights-go/internal/mapper/expr"
)

const noUpdateSentinel = -10000.0

// buildEnv assembles the predicate-evaluation context for one light at
// one frame: blackboard-derived audio features plus that light's
// prop_last_update table, both addressed by name from when-clauses.
func buildEnv(bb *blackboard.Board, lastUpdate map[string]float64, now time.Time) expr.Env {
	vars := map[string]expr.Value{
		"is_onset":         {Kind: expr.KindBool, Bool: bb.IsOnset},
		"is_beat":          {Kind: expr.KindBool, Bool: bb.IsBeat},
		"audio_v_sum":      {Kind: expr.KindNumber, Num: bb.AudioVSum},
		"audio_v_avg":      {Kind: expr.KindNumber, Num: bb.AudioVAvg},
		"audio":            {Kind: expr.KindString, Str: "audio"},
		"prop_last_update": {Kind: expr.KindString, Str: "prop_last_update"},
	}
	if bb.Pitch != nil {
		vars["pitch"] = expr.Value{Kind: expr.KindNumber, Num: *bb.Pitch}
	} else {
		vars["pitch"] = expr.Value{Kind: expr.KindNull}
	}
	if bb.IdleFor != nil {
		vars["idle_for"] = expr.Value{Kind: expr.KindNumber, Num: bb.IdleFor.Seconds()}
	} else {
		vars["idle_for"] = expr.Value{Kind: expr.KindNull}
	}
	if bb.DeadFor != nil {
		vars["dead_for"] = expr.Value{Kind: expr.KindNumber, Num: bb.DeadFor.Seconds()}
	} else {
		vars["dead_for"] = expr.Value{Kind: expr.KindNull}
	}

	index := func(container, key expr.Value) (expr.Value, error) {
		switch container.Str {
		case "audio":
			i := int(key.Num)
			if i < 0 || i >= len(bb.Audio) {
				return expr.Value{Kind: expr.KindNull}, nil
			}
			return expr.Value{Kind: expr.KindNumber, Num: bb.Audio[i]}, nil
		case "prop_last_update":
			t, ok := lastUpdate[key.Str]
			if !ok || t == noUpdateSentinel {
				return expr.Value{Kind: expr.KindNull}, nil
			}
			return expr.Value{Kind: expr.KindNumber, Num: t}, nil
		}
		return expr.Value{Kind: expr.KindNull}, nil
	}

	return expr.Env{
		Vars:  vars,
		Index: index,
		Now:   float64(now.UnixNano()) / 1e9,
	}
}
