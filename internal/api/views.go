package api

import "solana-autotrader/internal/domain"

type positionView struct {
	PositionID   string  `json:"positionId"`
	Mint         string  `json:"mint"`
	State        string  `json:"state"`
	EntryPrice   float64 `json:"entryPrice"`
	BaseAmount   float64 `json:"baseAmount"`
	Remaining    float64 `json:"remaining"`
	BuyAmount    float64 `json:"buyAmountSol"`
	ExitedStage1 bool    `json:"exitedStage1"`
	ExitedStage2 bool    `json:"exitedStage2"`
	Stopped      bool    `json:"stopped"`
	Source       string  `json:"source"`
	TxID         string  `json:"txId"`
	OpenedAt     int64   `json:"openedAt"`
	UpdatedAt    int64   `json:"updatedAt"`
}

func newPositionView(p *domain.Position) positionView {
	return positionView{
		PositionID:   p.PositionID,
		Mint:         p.Mint,
		State:        string(p.State),
		EntryPrice:   p.EntryPrice,
		BaseAmount:   p.BaseAmount,
		Remaining:    p.Remaining(),
		BuyAmount:    p.BuyAmount,
		ExitedStage1: p.ExitedStage1,
		ExitedStage2: p.ExitedStage2,
		Stopped:      p.Stopped,
		Source:       p.Source,
		TxID:         p.TxID,
		OpenedAt:     p.OpenedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

type fillView struct {
	FillID     string  `json:"fillId"`
	PositionID string  `json:"positionId,omitempty"`
	Mint       string  `json:"mint"`
	Side       string  `json:"side"`
	Stage      string  `json:"stage"`
	Source     string  `json:"source"`
	TxID       string  `json:"txId"`
	AmountIn   float64 `json:"amountIn"`
	AmountOut  float64 `json:"amountOut"`
	Price      float64 `json:"price"`
	LatencyMs  int64   `json:"latencyMs"`
	Timestamp  int64   `json:"timestamp"`
}

func newFillView(f *domain.Fill) fillView {
	return fillView{
		FillID:     f.FillID,
		PositionID: f.PositionID,
		Mint:       f.Mint,
		Side:       string(f.Side),
		Stage:      f.Stage,
		Source:     f.Source,
		TxID:       f.TxID,
		AmountIn:   f.AmountIn,
		AmountOut:  f.AmountOut,
		Price:      f.Price,
		LatencyMs:  f.LatencyMs,
		Timestamp:  f.Timestamp,
	}
}
