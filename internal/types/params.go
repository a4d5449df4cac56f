package types

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/inkback/pkg/errors"
)

// StrategyParams is an immutable set of named numeric strategy parameters.
type StrategyParams struct {
	values map[string]float64
}

// NewStrategyParams copies values so later changes to the map are not observed.
func NewStrategyParams(values map[string]float64) StrategyParams {
	copied := make(map[string]float64, len(values))
	for key, value := range values {
		copied[key] = value
	}

	return StrategyParams{values: copied}
}

func (p StrategyParams) Get(key string) optional.Option[float64] {
	value, ok := p.values[key]
	if !ok {
		return optional.None[float64]()
	}

	return optional.Some(value)
}

// GetOr returns the value for key or fallback when it is absent.
func (p StrategyParams) GetOr(key string, fallback float64) float64 {
	if value, ok := p.values[key]; ok {
		return value
	}

	return fallback
}

// Require returns the value for key, failing when it is absent or not finite.
func (p StrategyParams) Require(key string) (float64, error) {
	value, ok := p.values[key]
	if !ok {
		return 0, errors.Newf(errors.ErrCodeMissingParameter, "missing required parameter %q", key)
	}

	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, errors.Newf(errors.ErrCodeInvalidParameter, "parameter %q is not finite", key)
	}

	return value, nil
}

// RequirePositiveInt returns a required parameter as a window length or count.
func (p StrategyParams) RequirePositiveInt(key string) (int, error) {
	value, err := p.Require(key)
	if err != nil {
		return 0, err
	}

	if value < 1 || value != math.Trunc(value) {
		return 0, errors.Newf(errors.ErrCodeInvalidParameter, "parameter %q must be a positive integer, got %v", key, value)
	}

	return int(value), nil
}

func (p StrategyParams) Len() int {
	return len(p.values)
}

// Keys returns the parameter names in sorted order.
func (p StrategyParams) Keys() []string {
	keys := make([]string, 0, len(p.values))
	for key := range p.values {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}

// Map returns a copy of the underlying values.
func (p StrategyParams) Map() map[string]float64 {
	copied := make(map[string]float64, len(p.values))
	for key, value := range p.values {
		copied[key] = value
	}

	return copied
}

// String renders "k=v, k=v" in key order.
func (p StrategyParams) String() string {
	parts := make([]string, 0, len(p.values))
	for _, key := range p.Keys() {
		parts = append(parts, fmt.Sprintf("%s=%s", key, strconv.FormatFloat(p.values[key], 'f', -1, 64)))
	}

	return strings.Join(parts, ", ")
}

func (p StrategyParams) MarshalYAML() (any, error) {
	return p.Map(), nil
}

// ParameterGrid lists the candidate values for each parameter of a sweep.
type ParameterGrid map[string][]float64

// ExpandGrid returns the cartesian product of the grid. Keys are visited in
// sorted order with the last key varying fastest, so the output order only
// depends on the grid contents.
func ExpandGrid(grid ParameterGrid) ([]StrategyParams, error) {
	if len(grid) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidParameterGrid, "parameter grid is empty")
	}

	keys := make([]string, 0, len(grid))
	for key, values := range grid {
		if len(values) == 0 {
			return nil, errors.Newf(errors.ErrCodeInvalidParameterGrid, "parameter %q has no values", key)
		}

		keys = append(keys, key)
	}

	sort.Strings(keys)

	combos := []map[string]float64{{}}

	for _, key := range keys {
		next := make([]map[string]float64, 0, len(combos)*len(grid[key]))

		for _, combo := range combos {
			for _, value := range grid[key] {
				extended := make(map[string]float64, len(combo)+1)
				for k, v := range combo {
					extended[k] = v
				}

				extended[key] = value
				next = append(next, extended)
			}
		}

		combos = next
	}

	params := make([]StrategyParams, len(combos))
	for i, combo := range combos {
		params[i] = StrategyParams{values: combo}
	}

	return params, nil
}
