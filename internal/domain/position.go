package domain

// PositionState is the lifecycle state of a position.
type PositionState string

const (
	StateOpen     PositionState = "OPEN"
	StatePartial1 PositionState = "PARTIAL1"
	StatePartial2 PositionState = "PARTIAL2"
	StateClosed   PositionState = "CLOSED"
	StateStopped  PositionState = "STOPPED"
)

// IsTerminal reports whether no further exits can happen from this state.
func (s PositionState) IsTerminal() bool {
	return s == StateClosed || s == StateStopped
}

// Position represents one open trade tracked until fully exited.
// Corresponds to positions table.
type Position struct {
	PositionID string // deterministic hash
	UserID     string
	Mint       string // token address

	EntryPrice float64 // USD at open
	BaseAmount float64 // token atomic units bought
	BuyAmount  float64 // SOL spent

	ExitedStage1 bool
	ExitedStage2 bool
	Stopped      bool

	Stage1Sold float64 // atomic units sold at stage 1
	Stage2Sold float64 // atomic units sold at stage 2
	StopSold   float64 // atomic units sold at stop-loss

	Source string // winning buy source
	TxID   string // buy transaction signature
	State  PositionState

	OpenedAt  int64  // ms
	UpdatedAt int64  // ms
	ClosedAt  *int64 // ms, set on terminal state
}

// Remaining returns the amount not yet sold by stage 1 or stage 2.
func (p Position) Remaining() float64 {
	rest := p.BaseAmount - p.Stage1Sold - p.Stage2Sold
	if rest < 0 {
		return 0
	}
	return rest
}

// IsTerminal reports whether the position reached CLOSED or STOPPED.
func (p Position) IsTerminal() bool {
	return p.State.IsTerminal()
}

// DeriveState recomputes State from the exit flags.
// hasStage2 reports whether the strategy configures a second target.
func (p Position) DeriveState(hasStage2 bool) PositionState {
	switch {
	case p.Stopped:
		return StateStopped
	case p.ExitedStage1 && (!hasStage2 || p.ExitedStage2):
		return StateClosed
	case p.ExitedStage2:
		return StatePartial2
	case p.ExitedStage1:
		return StatePartial1
	default:
		return StateOpen
	}
}
