package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	engine "github.com/rxtech-lab/inkback/internal/backtest/engine/engine_v1"
	"github.com/rxtech-lab/inkback/internal/backtest/engine/engine_v1/transaction_cost"
	"github.com/rxtech-lab/inkback/internal/strategy"
	"github.com/rxtech-lab/inkback/internal/types"
	"gopkg.in/yaml.v3"
)

const (
	schemaName        = "backtest-engine-v1-config.json"
	sampleConfigName  = "backtest-engine-v1-config.yaml"
	sampleSweepName   = "sweep.yaml"
	defaultOutputPath = "./config"
)

func getSchemaReference(schemaName string) string {
	return "# yaml-language-server: $schema=" + schemaName + "\n"
}

func validateSchemaName(name string) error {
	if name == "" {
		return fmt.Errorf("schema name cannot be empty")
	}

	if !strings.HasSuffix(name, ".json") {
		return fmt.Errorf("schema name %q must have .json extension", name)
	}

	return nil
}

func generateSchemaFile(config engine.BacktestEngineV1Config, schemaPath string) error {
	schemaJSON, err := config.GenerateSchemaJSON()
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(schemaPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(schemaPath, []byte(schemaJSON), 0644); err != nil {
		return fmt.Errorf("failed to write schema to file: %w", err)
	}

	return nil
}

// writeIfMissing leaves an existing file untouched.
func writeIfMissing(path string, content []byte) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	log.Printf("Sample successfully generated at %s", path)

	return nil
}

func generateSampleConfig(config engine.BacktestEngineV1Config, samplePath string, schemaName string) error {
	yamlBytes, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal sample config to yaml: %w", err)
	}

	return writeIfMissing(samplePath, append([]byte(getSchemaReference(schemaName)), yamlBytes...))
}

// sampleSweep sweeps the moving average cross over a small grid.
func sampleSweep() map[string][]map[string]any {
	return map[string][]map[string]any{
		"strategies": {
			{
				"name": strategy.MovingAverageCrossName,
				"parameters": types.ParameterGrid{
					"short_window": {5, 10, 20},
					"long_window":  {50, 100},
				},
			},
		},
	}
}

func generateSampleSweep(samplePath string) error {
	yamlBytes, err := yaml.Marshal(sampleSweep())
	if err != nil {
		return fmt.Errorf("failed to marshal sample sweep to yaml: %w", err)
	}

	return writeIfMissing(samplePath, yamlBytes)
}

func sampleConfig() engine.BacktestEngineV1Config {
	config := engine.EmptyConfig()
	config.InitialCapital = 100000
	config.Instrument = types.EquityInstrument("SPY")
	config.TransactionCosts.Preset = transaction_cost.PresetRetailStock

	return config
}

func generate(outputPath string) error {
	if err := validateSchemaName(schemaName); err != nil {
		return err
	}

	config := sampleConfig()

	if err := generateSchemaFile(config, filepath.Join(outputPath, schemaName)); err != nil {
		return err
	}

	if err := generateSampleConfig(config, filepath.Join(outputPath, sampleConfigName), schemaName); err != nil {
		return err
	}

	return generateSampleSweep(filepath.Join(outputPath, sampleSweepName))
}

func main() {
	if err := generate(defaultOutputPath); err != nil {
		log.Fatal(err)
	}

	log.Printf("Schema successfully generated at %s", filepath.Join(defaultOutputPath, schemaName))
}
