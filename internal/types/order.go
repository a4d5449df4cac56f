package types

import (
	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/inkback/pkg/errors"
)

type OrderKind string

const (
	OrderKindMarketBuy  OrderKind = "MARKET_BUY"
	OrderKindMarketSell OrderKind = "MARKET_SELL"
	OrderKindLimitBuy   OrderKind = "LIMIT_BUY"
	OrderKindLimitSell  OrderKind = "LIMIT_SELL"
)

func (k OrderKind) IsBuy() bool {
	return k == OrderKindMarketBuy || k == OrderKindLimitBuy
}

func (k OrderKind) IsLimit() bool {
	return k == OrderKindLimitBuy || k == OrderKindLimitSell
}

// Side returns the position side a fill of this order would open.
func (k OrderKind) Side() PositionSide {
	if k.IsBuy() {
		return PositionSideLong
	}

	return PositionSideShort
}

// Order is an instruction emitted by a strategy. For market orders Price is
// the reference price the strategy observed; for limit orders it is the limit.
type Order struct {
	Kind  OrderKind `yaml:"kind" json:"kind" validate:"required,oneof=MARKET_BUY MARKET_SELL LIMIT_BUY LIMIT_SELL"`
	Price float64   `yaml:"price" json:"price" validate:"gt=0"`
}

func MarketBuy(price float64) Order  { return Order{Kind: OrderKindMarketBuy, Price: price} }
func MarketSell(price float64) Order { return Order{Kind: OrderKindMarketSell, Price: price} }
func LimitBuy(price float64) Order   { return Order{Kind: OrderKindLimitBuy, Price: price} }
func LimitSell(price float64) Order  { return Order{Kind: OrderKindLimitSell, Price: price} }

// Validate validates the Order struct.
func (o *Order) Validate() error {
	validate := validator.New()
	if err := validate.Struct(o); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidOrder, "invalid order", err)
	}

	return nil
}
