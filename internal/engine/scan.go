package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"solana-autotrader/internal/domain"
	"solana-autotrader/internal/execution"
	"solana-autotrader/internal/filter"
	"solana-autotrader/internal/idhash"
	"solana-autotrader/internal/observability"
	"solana-autotrader/internal/solana"
	"solana-autotrader/internal/storage"
)

// ScanResult summarizes one scan cycle.
type ScanResult struct {
	CycleID   string
	Users     int // users scanned
	Candidate int // candidates that passed filters and dedup, summed over users
	Opened    int
	Failed    int // buys that failed
	Errors    []string
}

// ScanOnce runs one scan cycle over every tradable user.
func (e *Engine) ScanOnce(ctx context.Context) ScanResult {
	start := e.opts.Now()
	cycle := uuid.NewString()
	logger := e.logger.With().Str("cycle", cycle).Logger()

	var users []*userState
	for _, st := range e.states() {
		u := st.snapshotUser()
		if u.CanTrade() {
			users = append(users, st)
		}
	}

	results := make([]userScan, len(users))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.ScanConcurrency)
	for i, st := range users {
		g.Go(func() error {
			results[i] = e.scanUser(gctx, logger, st)
			return nil
		})
	}
	_ = g.Wait()

	res := ScanResult{CycleID: cycle, Users: len(users)}
	status := "ok"
	for _, r := range results {
		res.Candidate += r.candidates
		res.Opened += r.opened
		res.Failed += r.failed
		if r.err != nil {
			res.Errors = append(res.Errors, r.err.Error())
			if errors.Is(r.err, ErrFeedUnavailable) {
				status = "feed_error"
			}
		}
	}

	finished := e.opts.Now()
	observability.RecordScan(status, finished.Sub(start).Seconds(), finished.Unix())
	if res.Opened > 0 || res.Failed > 0 || len(res.Errors) > 0 {
		logger.Info().
			Int("users", res.Users).
			Int("candidates", res.Candidate).
			Int("opened", res.Opened).
			Int("failed", res.Failed).
			Int("errors", len(res.Errors)).
			Dur("took", finished.Sub(start)).
			Msg("scan finished")
	}
	return res
}

type userScan struct {
	candidates int
	opened     int
	failed     int
	err        error
}

// scanUser filters the shared snapshot for one user and opens positions
// until capacity or balance runs out.
func (e *Engine) scanUser(ctx context.Context, logger zerolog.Logger, st *userState) userScan {
	var res userScan
	u := st.snapshotUser()
	cfg := u.Strategy.WithDefaults()
	logger = logger.With().Str("user", u.UserID).Logger()

	tokens, err := e.opts.Feed.FetchCandidates(ctx)
	if err != nil {
		res.err = fmt.Errorf("%w: %w", ErrFeedUnavailable, err)
		logger.Warn().Err(err).Msg("fetch candidates failed")
		return res
	}

	passed := filter.Filter(tokens, cfg)
	observability.RecordCandidatesPassed(len(passed))
	if logger.GetLevel() <= zerolog.TraceLevel {
		for _, t := range tokens {
			if reasons := filter.Explain(t, cfg); len(reasons) > 0 {
				logger.Trace().Str("mint", t.Address).Str("rejected", joinRejections(reasons)).Msg("candidate filtered")
			}
		}
	}

	for _, t := range passed {
		if ctx.Err() != nil {
			return res
		}
		// Deactivate may land mid-cycle.
		if !st.snapshotUser().CanTrade() {
			logger.Debug().Msg("user no longer tradable, stopping scan")
			return res
		}
		if e.opts.Dedup.Seen(u.UserID, t.Address) || st.has(t.Address) {
			continue
		}
		res.candidates++

		err := e.tryOpen(ctx, logger, st, u, cfg, t)
		switch {
		case err == nil:
			res.opened++
		case errors.Is(err, errAlreadyOpen):
		case errors.Is(err, errUserInactive):
			return res
		case errors.Is(err, ErrCapacityExceeded):
			logger.Debug().Int("max", cfg.MaxActiveTrades).Msg("capacity reached")
			return res
		case errors.Is(err, ErrInsufficientBalance):
			logger.Info().Err(err).Msg("stopping scan for user")
			res.err = err
			return res
		default:
			res.failed++
			logger.Warn().Err(err).Str("mint", t.Address).Msg("auto-buy failed")
			e.opts.Notifier.Notify(ctx, u.UserID, fmt.Sprintf("Auto-buy of %s failed: %v", t.Address, err))
		}
	}
	return res
}

// tryOpen reserves a slot, checks the balance, buys and starts the monitor.
func (e *Engine) tryOpen(ctx context.Context, logger zerolog.Logger, st *userState, u domain.User, cfg domain.StrategyConfig, t domain.TokenCandidate) error {
	if err := st.reserve(t.Address, cfg.MaxActiveTrades); err != nil {
		return err
	}

	if err := e.checkBalance(ctx, u.Signer.PublicKey(), cfg.BuyAmount); err != nil {
		st.unreserve(t.Address)
		return err
	}

	fill, err := e.opts.Trader.Buy(ctx, t.Address, cfg.BuyAmount, u.Signer)
	if err != nil {
		st.unreserve(t.Address)
		return err
	}

	pos := e.register(ctx, logger, u, cfg, t, fill)
	e.opts.Dedup.MarkSeen(u.UserID, t.Address)
	e.spawn(st, pos, u)

	e.opts.Notifier.Notify(ctx, u.UserID, buyMessage(pos, cfg))
	return nil
}

// checkBalance requires buy amount plus the fee reserve in lamports.
func (e *Engine) checkBalance(ctx context.Context, pubkey string, buySOL float64) error {
	lamports, err := e.opts.Balances.GetBalance(ctx, pubkey)
	if err != nil {
		return fmt.Errorf("get balance: %w", err)
	}
	need := execution.SOLToLamports(buySOL + e.opts.FeeReserveSOL).IntPart()
	if int64(lamports) < need {
		return fmt.Errorf("%w: have %d lamports, need %d", ErrInsufficientBalance, lamports, need)
	}
	return nil
}

// register builds the position from the winning fill and persists it with
// its entry fill.
func (e *Engine) register(ctx context.Context, logger zerolog.Logger, u domain.User, cfg domain.StrategyConfig, t domain.TokenCandidate, fill domain.Fill) domain.Position {
	nowMs := e.opts.Now().UnixMilli()

	// The snapshot price can be a full refresh interval old.
	entry := 0.0
	if p, err := e.opts.Feed.FetchCurrentPrice(ctx, t.Address); err == nil && p > 0 {
		entry = p
	} else if t.PriceUSD != nil {
		entry = *t.PriceUSD
	}

	base := fill.AmountOut
	if base <= 0 {
		base = e.tokenBalance(ctx, logger, u.Signer.PublicKey(), t.Address)
	}

	pos := domain.Position{
		PositionID: idhash.ComputePositionID(u.UserID, t.Address, fill.TxID),
		UserID:     u.UserID,
		Mint:       t.Address,
		EntryPrice: entry,
		BaseAmount: base,
		BuyAmount:  cfg.BuyAmount,
		Source:     fill.Source,
		TxID:       fill.TxID,
		OpenedAt:   nowMs,
		UpdatedAt:  nowMs,
	}
	pos.State = pos.DeriveState(cfg.HasStage2())

	if e.opts.Positions != nil {
		if err := e.opts.Positions.Insert(ctx, &pos); err != nil {
			logger.Error().Err(err).Str("position", pos.PositionID).Msg("persist position failed")
		}
	}
	if e.opts.Fills != nil {
		fill.UserID = u.UserID
		fill.PositionID = pos.PositionID
		fill.Stage = domain.StageEntry
		fill.Price = entry
		fill.FillID = idhash.ComputeFillID(pos.PositionID, domain.StageEntry, fill.TxID)
		if err := e.opts.Fills.Insert(ctx, &fill); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			logger.Error().Err(err).Str("tx", fill.TxID).Msg("record entry fill failed")
		}
	}

	logger.Info().
		Str("mint", pos.Mint).
		Str("position", pos.PositionID).
		Str("source", pos.Source).
		Float64("entry_price", entry).
		Float64("base_amount", base).
		Msg("position opened")
	return pos
}

// tokenBalance reads the wallet's token account for mint, trying the
// classic token program first. Returns 0 when neither account exists.
func (e *Engine) tokenBalance(ctx context.Context, logger zerolog.Logger, owner, mint string) float64 {
	for _, program := range []string{solana.TokenProgramID, solana.Token2022ProgramID} {
		ata, err := solana.AssociatedTokenAddressWithProgram(owner, mint, program)
		if err != nil {
			logger.Warn().Err(err).Str("mint", mint).Msg("derive token account failed")
			return 0
		}

		// Give the RPC node a moment; the buy was just confirmed.
		bctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		bal, err := e.opts.Balances.GetTokenAccountBalance(bctx, ata)
		cancel()
		if errors.Is(err, solana.ErrAccountNotFound) {
			continue
		}
		if err != nil {
			logger.Warn().Err(err).Str("mint", mint).Msg("token balance lookup failed")
			return 0
		}
		amount, err := execution.ParseAmount(bal.Amount)
		if err != nil {
			logger.Warn().Err(err).Str("mint", mint).Msg("parse token balance failed")
			return 0
		}
		return amount
	}
	logger.Warn().Str("mint", mint).Msg("no token account found after buy")
	return 0
}

func buyMessage(pos domain.Position, cfg domain.StrategyConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Auto-buy executed by strategy.\nToken: %s\nAmount: %g SOL\n", pos.Mint, pos.BuyAmount)
	if cfg.HasStage2() {
		fmt.Fprintf(&b, "Profit targets: %g%%, %g%%\nSell percents: %g%%, %g%%\n",
			cfg.ProfitTarget1, *cfg.ProfitTarget2, cfg.SellPercent1, cfg.Stage2Percent())
	} else {
		fmt.Fprintf(&b, "Profit target: %g%%\nSell percent: %g%%\n", cfg.ProfitTarget1, cfg.SellPercent1)
	}
	fmt.Fprintf(&b, "Stop loss: %g%%\nSource: %s\nTransaction: https://solscan.io/tx/%s", cfg.StopLossPercent, pos.Source, pos.TxID)
	return b.String()
}

func joinRejections(rs []filter.Rejection) string {
	parts := make([]string, len(rs))
	for i, r := range rs {
		parts[i] = r.String()
	}
	return strings.Join(parts, "; ")
}
