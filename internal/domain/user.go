package domain

// Signer is an opaque signing credential. The core passes it through to trade
// sources and never inspects key material.
type Signer interface {
	PublicKey() string
	Sign(message []byte) ([]byte, error)
}

// User is a trading account with its strategy.
// Corresponds to users table; the secret itself is never persisted here.
type User struct {
	UserID    string
	Wallet    string // base58 public key
	Strategy  StrategyConfig
	Active    bool
	Signer    Signer `json:"-"`
	CreatedAt int64  // ms
	UpdatedAt int64  // ms
}

// CanTrade reports whether the engine should scan for this user.
func (u User) CanTrade() bool {
	return u.Active && u.Strategy.Enabled && u.Signer != nil && u.Signer.PublicKey() != ""
}
