package persistence

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tripolskypetr/backtest-kit-sub014/internal/signal"
)

func toRecord(s *signal.Signal) record {
	partials := make([]partialRecord, 0, len(s.Partials))
	for _, p := range s.Partials {
		partials = append(partials, partialRecord{
			Type:    p.Type,
			Percent: p.Percent,
			Price:   p.Price.String(),
		})
	}
	return record{
		ID:                  s.ID,
		Symbol:              s.Symbol,
		StrategyName:        s.StrategyName,
		ExchangeName:        s.ExchangeName,
		Position:            s.Position,
		PriceOpen:           s.PriceOpen.String(),
		PriceTakeProfit:     s.PriceTakeProfit.String(),
		PriceStopLoss:       s.PriceStopLoss.String(),
		MinuteEstimatedTime: s.MinuteEstimatedTime,
		Timestamp:           s.Timestamp.Unix(),
		Note:                s.Note,
		Partials:            partials,
	}
}

func fromRecord(rec record) (*signal.Signal, error) {
	priceOpen, err := decimal.NewFromString(rec.PriceOpen)
	if err != nil {
		return nil, fmt.Errorf("persistence: priceOpen: %w", err)
	}
	tp, err := decimal.NewFromString(rec.PriceTakeProfit)
	if err != nil {
		return nil, fmt.Errorf("persistence: priceTakeProfit: %w", err)
	}
	sl, err := decimal.NewFromString(rec.PriceStopLoss)
	if err != nil {
		return nil, fmt.Errorf("persistence: priceStopLoss: %w", err)
	}

	s := signal.New(rec.Symbol, rec.StrategyName, rec.ExchangeName, rec.Position,
		priceOpen, tp, sl, rec.MinuteEstimatedTime, time.Unix(rec.Timestamp, 0).UTC(), rec.Note)
	s.ID = rec.ID

	for _, p := range rec.Partials {
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return nil, fmt.Errorf("persistence: partial price: %w", err)
		}
		s.AppendPartial(p.Type, p.Percent, price)
	}
	return s, nil
}
