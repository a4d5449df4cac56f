package main

import (
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/inkback/internal/strategy"
	"github.com/rxtech-lab/inkback/internal/types"
	"github.com/rxtech-lab/inkback/pkg/errors"
	"gopkg.in/yaml.v3"
)

// SweepFile lists the strategies to sweep and the grid of each.
//
//	strategies:
//	  - name: ma_cross
//	    parameters:
//	      short_window: [5, 10]
//	      long_window: [20, 50]
type SweepFile struct {
	Strategies []StrategyGrid `yaml:"strategies" validate:"required,min=1,dive"`
}

type StrategyGrid struct {
	Name       string              `yaml:"name" validate:"required"`
	Parameters types.ParameterGrid `yaml:"parameters" validate:"required"`
}

// sweepPlan is a StrategyGrid resolved against a registry.
type sweepPlan struct {
	name       string
	factory    strategy.Factory
	parameters []types.StrategyParams
}

func loadSweepFile(path string) (SweepFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SweepFile{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read sweep file %s", path)
	}

	return parseSweepFile(data)
}

func parseSweepFile(data []byte) (SweepFile, error) {
	var file SweepFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return SweepFile{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse sweep file", err)
	}

	validate := validator.New()
	if err := validate.Struct(file); err != nil {
		return SweepFile{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid sweep file", err)
	}

	return file, nil
}

// resolve looks every strategy up in registry and expands its grid.
func (f SweepFile) resolve(registry *strategy.Registry) ([]sweepPlan, error) {
	plans := make([]sweepPlan, 0, len(f.Strategies))

	for _, grid := range f.Strategies {
		factory, err := registry.Get(grid.Name)
		if err != nil {
			return nil, err
		}

		parameters, err := types.ExpandGrid(grid.Parameters)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeInvalidParameterGrid, err, "invalid grid for %s", grid.Name)
		}

		plans = append(plans, sweepPlan{name: grid.Name, factory: factory, parameters: parameters})
	}

	return plans, nil
}
