package types

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/inkback/pkg/errors"
)

// Schema identifies the record layout a MarketEvent was decoded from.
type Schema string

const (
	SchemaOHLCV       Schema = "ohlcv"
	SchemaTrade       Schema = "trade"
	SchemaMBP1        Schema = "mbp-1"
	SchemaOptionTrade Schema = "option-trade"
	SchemaFootprint   Schema = "footprint"
)

var AllSchemas = []any{
	SchemaOHLCV,
	SchemaTrade,
	SchemaMBP1,
	SchemaOptionTrade,
	SchemaFootprint,
}

// MarketEvent is one observation in a historical series. Every variant
// exposes the common accessors; schema specific fields are reached with a
// type switch on the concrete variant.
type MarketEvent interface {
	// Time returns the event timestamp with nanosecond precision.
	Time() time.Time
	// Price returns the event's last traded or closing price.
	Price() float64
	// HighPrice returns the bar high, or Price when the schema has none.
	HighPrice() float64
	// LowPrice returns the bar low, or Price when the schema has none.
	LowPrice() float64
	// TradedVolume returns the volume of the event, 0 when unknown.
	TradedVolume() float64
	// Quote returns the top of book for the traded instrument if present.
	Quote() optional.Option[Quote]
	Schema() Schema
}

// Quote is a top of book snapshot.
type Quote struct {
	BidPrice float64 `yaml:"bid_price" json:"bid_price"`
	AskPrice float64 `yaml:"ask_price" json:"ask_price"`
	BidSize  float64 `yaml:"bid_size" json:"bid_size"`
	AskSize  float64 `yaml:"ask_size" json:"ask_size"`
}

// Valid reports whether both sides are positive and not crossed.
func (q Quote) Valid() bool {
	return q.BidPrice > 0 && q.AskPrice > 0 && q.AskPrice >= q.BidPrice
}

func (q Quote) Mid() float64 {
	return (q.BidPrice + q.AskPrice) / 2
}

func (q Quote) Spread() float64 {
	return q.AskPrice - q.BidPrice
}

// Bar is an OHLCV aggregate.
type Bar struct {
	Symbol    string    `yaml:"symbol" json:"symbol"`
	Timestamp time.Time `yaml:"time" json:"time"`
	Open      float64   `yaml:"open" json:"open"`
	High      float64   `yaml:"high" json:"high"`
	Low       float64   `yaml:"low" json:"low"`
	Close     float64   `yaml:"close" json:"close"`
	Volume    float64   `yaml:"volume" json:"volume"`
}

func (b Bar) Time() time.Time               { return b.Timestamp }
func (b Bar) Price() float64                { return b.Close }
func (b Bar) TradedVolume() float64         { return b.Volume }
func (b Bar) Quote() optional.Option[Quote] { return optional.None[Quote]() }
func (b Bar) Schema() Schema                { return SchemaOHLCV }

// HighPrice is High, or Close when the bar carries no high.
func (b Bar) HighPrice() float64 {
	if b.High > 0 {
		return b.High
	}

	return b.Close
}

// LowPrice is Low, or Close when the bar carries no low.
func (b Bar) LowPrice() float64 {
	if b.Low > 0 {
		return b.Low
	}

	return b.Close
}

// Tick is a single trade print.
type Tick struct {
	Symbol     string    `yaml:"symbol" json:"symbol"`
	Timestamp  time.Time `yaml:"time" json:"time"`
	TradePrice float64   `yaml:"price" json:"price"`
	Size       float64   `yaml:"size" json:"size"`
}

func (t Tick) Time() time.Time               { return t.Timestamp }
func (t Tick) Price() float64                { return t.TradePrice }
func (t Tick) HighPrice() float64            { return t.TradePrice }
func (t Tick) LowPrice() float64             { return t.TradePrice }
func (t Tick) TradedVolume() float64         { return t.Size }
func (t Tick) Quote() optional.Option[Quote] { return optional.None[Quote]() }
func (t Tick) Schema() Schema                { return SchemaTrade }

// QuoteTick is a trade print carrying the top of book at the time of the trade.
type QuoteTick struct {
	Symbol     string    `yaml:"symbol" json:"symbol"`
	Timestamp  time.Time `yaml:"time" json:"time"`
	TradePrice float64   `yaml:"price" json:"price"`
	Size       float64   `yaml:"size" json:"size"`
	Book       Quote     `yaml:"book" json:"book"`
}

func (q QuoteTick) Time() time.Time       { return q.Timestamp }
func (q QuoteTick) Price() float64        { return q.TradePrice }
func (q QuoteTick) HighPrice() float64    { return q.TradePrice }
func (q QuoteTick) LowPrice() float64     { return q.TradePrice }
func (q QuoteTick) TradedVolume() float64 { return q.Size }
func (q QuoteTick) Schema() Schema        { return SchemaMBP1 }

func (q QuoteTick) Quote() optional.Option[Quote] {
	if !q.Book.Valid() {
		return optional.None[Quote]()
	}

	return optional.Some(q.Book)
}

type OptionRight string

const (
	OptionRightCall OptionRight = "C"
	OptionRightPut  OptionRight = "P"
)

// OptionTrade is a trade print on a listed option contract together with
// the underlying's quote at the time of the trade.
type OptionTrade struct {
	Symbol          string      `yaml:"symbol" json:"symbol"`
	InstrumentID    uint32      `yaml:"instrument_id" json:"instrument_id"`
	Timestamp       time.Time   `yaml:"time" json:"time"`
	TradePrice      float64     `yaml:"price" json:"price"`
	Size            float64     `yaml:"size" json:"size"`
	Strike          float64     `yaml:"strike" json:"strike"`
	Expiration      time.Time   `yaml:"expiration" json:"expiration"`
	Right           OptionRight `yaml:"right" json:"right"`
	Underlying      Quote       `yaml:"underlying" json:"underlying"`
	UnderlyingPrice float64     `yaml:"underlying_price" json:"underlying_price"`
}

func (o OptionTrade) Time() time.Time               { return o.Timestamp }
func (o OptionTrade) Price() float64                { return o.TradePrice }
func (o OptionTrade) HighPrice() float64            { return o.TradePrice }
func (o OptionTrade) LowPrice() float64             { return o.TradePrice }
func (o OptionTrade) TradedVolume() float64         { return o.Size }
func (o OptionTrade) Quote() optional.Option[Quote] { return optional.None[Quote]() }
func (o OptionTrade) Schema() Schema                { return SchemaOptionTrade }

// UnderlyingMid returns the underlying mid, falling back to the last
// underlying price when the quote is unusable.
func (o OptionTrade) UnderlyingMid() float64 {
	if o.Underlying.Valid() {
		return o.Underlying.Mid()
	}

	return o.UnderlyingPrice
}

// DaysToExpiry returns the whole days between the trade and expiration.
func (o OptionTrade) DaysToExpiry() int {
	return int(o.Expiration.Sub(o.Timestamp).Hours() / 24)
}

// FootprintLevel is the buy and sell volume traded at one price.
type FootprintLevel struct {
	Price      float64 `yaml:"price" json:"price"`
	BuyVolume  float64 `yaml:"buy_volume" json:"buy_volume"`
	SellVolume float64 `yaml:"sell_volume" json:"sell_volume"`
}

// Footprint is a bar with its volume at price breakdown.
type Footprint struct {
	Bar
	Levels []FootprintLevel `yaml:"levels" json:"levels"`
}

func (f Footprint) Schema() Schema { return SchemaFootprint }

func (f Footprint) BuyVolume() float64 {
	total := 0.0
	for _, level := range f.Levels {
		total += level.BuyVolume
	}

	return total
}

func (f Footprint) SellVolume() float64 {
	total := 0.0
	for _, level := range f.Levels {
		total += level.SellVolume
	}

	return total
}

// Imbalance returns (buy - sell) / (buy + sell), or 0 with no volume.
func (f Footprint) Imbalance() float64 {
	buy, sell := f.BuyVolume(), f.SellVolume()
	if buy+sell == 0 {
		return 0
	}

	return (buy - sell) / (buy + sell)
}

// DecodeFootprintLevels parses a volume at price table encoded as a JSON
// object of price to [buy, sell]. Levels are returned sorted by price.
func DecodeFootprintLevels(data []byte) ([]FootprintLevel, error) {
	var raw map[string][2]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(errors.ErrCodeMalformedEvent, "invalid footprint levels", err)
	}

	levels := make([]FootprintLevel, 0, len(raw))

	for key, volumes := range raw {
		price, err := strconv.ParseFloat(key, 64)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeMalformedEvent, err, "invalid footprint price %q", key)
		}

		levels = append(levels, FootprintLevel{Price: price, BuyVolume: volumes[0], SellVolume: volumes[1]})
	}

	sort.Slice(levels, func(i, j int) bool { return levels[i].Price < levels[j].Price })

	return levels, nil
}

// RepresentativePrice is the price an order fills against: the quote mid
// when a usable quote is present, else the event price.
func RepresentativePrice(event MarketEvent) float64 {
	if quote := event.Quote(); quote.IsSome() {
		return quote.Unwrap().Mid()
	}

	return event.Price()
}

// ValidateEvent rejects events that cannot be simulated against.
func ValidateEvent(event MarketEvent) error {
	if event == nil {
		return errors.New(errors.ErrCodeMalformedEvent, "nil market event")
	}

	if event.Time().IsZero() {
		return errors.New(errors.ErrCodeMalformedEvent, "market event without timestamp")
	}

	price := event.Price()
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return errors.Newf(errors.ErrCodeMalformedEvent, "invalid price %v at %s", price, event.Time())
	}

	if event.HighPrice() < event.LowPrice() {
		return errors.Newf(errors.ErrCodeMalformedEvent, "high %v below low %v at %s", event.HighPrice(), event.LowPrice(), event.Time())
	}

	if price < event.LowPrice() || price > event.HighPrice() {
		return errors.Newf(errors.ErrCodeMalformedEvent, "price %v outside range [%v, %v] at %s", price, event.LowPrice(), event.HighPrice(), event.Time())
	}

	if volume := event.TradedVolume(); math.IsNaN(volume) || volume < 0 {
		return errors.Newf(errors.ErrCodeMalformedEvent, "invalid volume %v at %s", volume, event.Time())
	}

	return nil
}
