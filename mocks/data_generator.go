package mocks

import (
	"math"
	"math/rand"
	"time"

	"github.com/rxtech-lab/inkback/internal/types"
)

// DataGenerator generates realistic market events for testing and benchmarking.
type DataGenerator struct {
	rng *rand.Rand
}

// NewDataGenerator creates a new DataGenerator with the given seed.
// Use a fixed seed for reproducible results in tests.
func NewDataGenerator(seed int64) *DataGenerator {
	return &DataGenerator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// GeneratorConfig configures how market data is generated.
type GeneratorConfig struct {
	// Symbol is the trading symbol (e.g., "AAPL", "SPY")
	Symbol string
	// StartTime is the beginning of the data series
	StartTime time.Time
	// Interval is the duration between each bar
	Interval time.Duration
	// Count is the number of data points to generate
	Count int
	// InitialPrice is the starting price
	InitialPrice float64
	// Volatility controls price movement (0.01 = 1% per bar)
	Volatility float64
	// Trend is the drift over the whole series (-0.01 to 0.01 for bearish to bullish)
	Trend float64
	// VolumeBase is the average volume per bar
	VolumeBase float64
	// VolumeVariance is the variance in volume (0.0 to 1.0)
	VolumeVariance float64
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Symbol:         "TEST",
		StartTime:      time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC),
		Interval:       time.Minute,
		Count:          10000,
		InitialPrice:   100.0,
		Volatility:     0.002, // 0.2% per bar
		Trend:          0.0,   // neutral
		VolumeBase:     10000,
		VolumeVariance: 0.3,
	}
}

// Generate creates OHLCV bars following a geometric Brownian motion.
func (g *DataGenerator) Generate(config GeneratorConfig) []types.Bar {
	bars := make([]types.Bar, config.Count)
	currentPrice := config.InitialPrice
	currentTime := config.StartTime

	for i := 0; i < config.Count; i++ {
		open := currentPrice

		// Box-Muller transform for a standard normal draw
		u1 := 1 - g.rng.Float64()
		u2 := g.rng.Float64()
		z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)

		priceChange := config.Volatility * z
		drift := config.Trend / float64(config.Count)

		close := open * (1 + priceChange + drift)
		if close <= 0 {
			close = open * 0.99
		}

		highExtension := math.Abs(g.rng.Float64() * config.Volatility * open * 0.5)
		lowExtension := math.Abs(g.rng.Float64() * config.Volatility * open * 0.5)

		high := math.Max(open, close) + highExtension
		low := math.Min(open, close) - lowExtension
		if low <= 0 {
			low = math.Min(open, close) * 0.99
		}

		volumeVariation := 1.0 + (g.rng.Float64()*2-1)*config.VolumeVariance
		volume := config.VolumeBase * volumeVariation
		if volume < 0 {
			volume = config.VolumeBase * 0.1
		}

		bars[i] = types.Bar{
			Symbol:    config.Symbol,
			Timestamp: currentTime,
			Open:      roundToDecimals(open, 4),
			High:      roundToDecimals(high, 4),
			Low:       roundToDecimals(low, 4),
			Close:     roundToDecimals(close, 4),
			Volume:    roundToDecimals(volume, 2),
		}

		currentPrice = close
		currentTime = currentTime.Add(config.Interval)
	}

	return bars
}

// GenerateEvents is Generate with every bar returned as a MarketEvent.
func (g *DataGenerator) GenerateEvents(config GeneratorConfig) []types.MarketEvent {
	bars := g.Generate(config)

	events := make([]types.MarketEvent, len(bars))
	for i, bar := range bars {
		events[i] = bar
	}

	return events
}

// GenerateFootprints splits the volume of each generated bar into buy and
// sell volume at its open and close. Rising bars lean to the buy side.
func (g *DataGenerator) GenerateFootprints(config GeneratorConfig) []types.MarketEvent {
	bars := g.Generate(config)

	events := make([]types.MarketEvent, len(bars))
	for i, bar := range bars {
		buyShare := 0.5 + (g.rng.Float64()-0.5)*0.4
		if bar.Close > bar.Open {
			buyShare += 0.2
		} else if bar.Close < bar.Open {
			buyShare -= 0.2
		}

		buyVolume := roundToDecimals(bar.Volume*buyShare, 2)
		sellVolume := roundToDecimals(bar.Volume-buyVolume, 2)

		events[i] = types.Footprint{
			Bar: bar,
			Levels: []types.FootprintLevel{
				{Price: bar.Low, BuyVolume: roundToDecimals(buyVolume/2, 2), SellVolume: roundToDecimals(sellVolume/2, 2)},
				{Price: bar.High, BuyVolume: roundToDecimals(buyVolume/2, 2), SellVolume: roundToDecimals(sellVolume/2, 2)},
			},
		}
	}

	return events
}

// Generate10K is a convenience function to generate 10,000 bars
// with default settings for benchmarking.
func Generate10K(symbol string) []types.MarketEvent {
	gen := NewDataGenerator(42) // Fixed seed for reproducibility
	config := DefaultConfig()
	config.Symbol = symbol
	config.Count = 10000

	return gen.GenerateEvents(config)
}

// roundToDecimals rounds a float64 to the specified number of decimal places.
func roundToDecimals(val float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))

	return math.Round(val*pow) / pow
}
