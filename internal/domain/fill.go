package domain

// Fill is an append-only record of one executed swap.
// Corresponds to fills table (ClickHouse).
type Fill struct {
	FillID     string // deterministic hash
	UserID     string
	PositionID string // empty for probes
	Mint       string
	Side       Side
	Stage      string // "ENTRY", "STAGE1", "STAGE2", "STOP_LOSS"
	Source     string // winning adapter name
	TxID       string // transaction signature

	AmountIn  float64 // SOL for buys, token atomic units for sells
	AmountOut float64 // token atomic units for buys, lamports for sells
	Price     float64 // USD price observed when the order was placed

	LatencyMs int64 // adapter wall time
	Timestamp int64 // ms
}

// Fill stage codes
const (
	StageEntry    = "ENTRY"
	StageOne      = "STAGE1"
	StageTwo      = "STAGE2"
	StageStopLoss = "STOP_LOSS"
)
