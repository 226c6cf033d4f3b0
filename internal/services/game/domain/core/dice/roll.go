// Package dice provides deterministic dice rolls for board movement.
package dice

import (
	"math/rand"

	apperrors "github.com/wealthpath/wealthpath/internal/platform/errors"
)

// ErrInvalidSpec indicates a dice spec with a non-positive side or count.
var ErrInvalidSpec = apperrors.New(apperrors.CodeTurnInvalidAction, "dice spec requires positive sides and count")

// Spec describes one group of identical dice.
type Spec struct {
	Sides int
	Count int
}

// Result captures the values rolled for a request, in spec order.
type Result struct {
	Values []int
	Total  int
}

// Roll rolls the given specs with a seeded source. Results are deterministic
// with respect to the seed and the spec slice, which keeps replays and match
// history reproducible.
func Roll(seed int64, specs ...Spec) (Result, error) {
	if len(specs) == 0 {
		specs = []Spec{{Sides: 6, Count: 1}}
	}

	rng := rand.New(rand.NewSource(seed))
	var result Result
	for _, spec := range specs {
		if spec.Sides <= 0 || spec.Count <= 0 {
			return Result{}, ErrInvalidSpec
		}
		for i := 0; i < spec.Count; i++ {
			value := rng.Intn(spec.Sides) + 1
			result.Values = append(result.Values, value)
			result.Total += value
		}
	}
	return result, nil
}
