package mapper

import (
	"fmt"

	"github.com/partylights/partylights-go/internal/mapper/expr"
)

// Compile parses every StateEffect's when-clause once at startup and
// sorts each light's StateEffects by descending priority, so the
// per-frame applicability scan never re-parses or re-sorts.
func Compile(mappings map[string]*LightMapping) error {
	for name, m := range mappings {
		for i := range m.StateEffects {
			se := &m.StateEffects[i]
			if se.WhenText == "" {
				continue
			}
			n, err := expr.Parse(se.WhenText)
			if err != nil {
				return fmt.Errorf("mapper: light %s state effect %s: %w", name, se.Name, err)
			}
			se.predicate = n
		}
		sortStateEffectsByPriority(m.StateEffects)
	}
	return nil
}

// sortStateEffectsByPriority is a small insertion sort: state-effect
// lists are short (single digits per light) and this keeps ties in
// their original config order, unlike sort.Slice.
func sortStateEffectsByPriority(ses []StateEffect) {
	for i := 1; i < len(ses); i++ {
		for j := i; j > 0 && ses[j].Priority > ses[j-1].Priority; j-- {
			ses[j], ses[j-1] = ses[j-1], ses[j]
		}
	}
}
