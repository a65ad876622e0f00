package domain

import (
	"errors"
	"testing"
)

func f64(v float64) *float64 { return &v }

func TestStrategyConfig_WithDefaults(t *testing.T) {
	cfg := StrategyConfig{Enabled: true}.WithDefaults()

	if cfg.BuyAmount != DefaultBuyAmount {
		t.Errorf("BuyAmount = %v, want %v", cfg.BuyAmount, DefaultBuyAmount)
	}
	if cfg.MaxActiveTrades != DefaultMaxActiveTrades {
		t.Errorf("MaxActiveTrades = %d, want %d", cfg.MaxActiveTrades, DefaultMaxActiveTrades)
	}
	if cfg.ProfitTarget1 != 20 || cfg.SellPercent1 != 50 {
		t.Errorf("stage 1 = %v/%v, want 20/50", cfg.ProfitTarget1, cfg.SellPercent1)
	}
	if !cfg.HasStage2() || *cfg.ProfitTarget2 != 50 || cfg.Stage2Percent() != 50 {
		t.Errorf("stage 2 not defaulted: %+v", cfg)
	}
	if cfg.StopLossPercent != DefaultStopLossPercent {
		t.Errorf("StopLossPercent = %v", cfg.StopLossPercent)
	}
	if cfg.MaxAge != nil {
		t.Errorf("MaxAge should stay unset without FastListing")
	}
}

func TestStrategyConfig_WithDefaults_SingleTarget(t *testing.T) {
	cfg := StrategyConfig{ProfitTarget1: 30}.WithDefaults()

	if cfg.HasStage2() {
		t.Fatalf("explicit single target must not gain a second stage")
	}
	if cfg.SellPercent1 != 100 {
		t.Errorf("SellPercent1 = %v, want 100", cfg.SellPercent1)
	}
}

func TestStrategyConfig_WithDefaults_FastListing(t *testing.T) {
	cfg := StrategyConfig{FastListing: true}.WithDefaults()
	if cfg.MaxAge == nil || *cfg.MaxAge != FastListingMaxAge {
		t.Fatalf("MaxAge = %v, want %v", cfg.MaxAge, FastListingMaxAge)
	}

	cfg = StrategyConfig{FastListing: true, MaxAge: f64(5)}.WithDefaults()
	if *cfg.MaxAge != 5 {
		t.Errorf("explicit MaxAge overridden: %v", *cfg.MaxAge)
	}
}

func TestStrategyConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     StrategyConfig
		wantErr bool
	}{
		{"defaults", StrategyConfig{}.WithDefaults(), false},
		{"negative buy", StrategyConfig{BuyAmount: -1}, true},
		{"sell1 over 100", StrategyConfig{SellPercent1: 120}, true},
		{"sum over 100", StrategyConfig{SellPercent1: 60, ProfitTarget2: f64(40), SellPercent2: f64(60)}, true},
		{"pt2 below pt1", StrategyConfig{ProfitTarget1: 50, SellPercent1: 50, ProfitTarget2: f64(20), SellPercent2: f64(50)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidStrategy) {
				t.Errorf("expected ErrInvalidStrategy, got %v", err)
			}
		})
	}
}

func TestPosition_DeriveStateSequence(t *testing.T) {
	p := &Position{BaseAmount: 100}
	if got := p.DeriveState(true); got != StateOpen {
		t.Errorf("fresh = %s, want OPEN", got)
	}

	p.ExitedStage1 = true
	p.Stage1Sold = 50
	if got := p.DeriveState(true); got != StatePartial1 {
		t.Errorf("stage1 with stage2 = %s, want PARTIAL1", got)
	}
	if got := p.DeriveState(false); got != StateClosed {
		t.Errorf("stage1 without stage2 = %s, want CLOSED", got)
	}
	if p.Remaining() != 50 {
		t.Errorf("Remaining = %v, want 50", p.Remaining())
	}

	p.Stopped = true
	if got := p.DeriveState(true); got != StateStopped {
		t.Errorf("stopped = %s, want STOPPED", got)
	}
}

func TestAgeMinutesAt(t *testing.T) {
	created := int64(1_000_000)
	age := AgeMinutesAt(&created, created+10*60000)
	if age == nil || *age != 10 {
		t.Fatalf("age = %v, want 10", age)
	}
	if AgeMinutesAt(nil, created) != nil {
		t.Errorf("nil timestamp should give nil age")
	}
	future := created + 1
	if AgeMinutesAt(&future, created) != nil {
		t.Errorf("future timestamp should give nil age")
	}
}
