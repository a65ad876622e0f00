package execution

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-autotrader/internal/solana/stub"
	"solana-autotrader/internal/wallet"
)

func unsignedTxBase64(t *testing.T, payer string) string {
	t.Helper()
	key, err := base58.Decode(payer)
	require.NoError(t, err)

	msg := []byte{1, 0, 1, 1}
	msg = append(msg, key...)
	msg = append(msg, make([]byte, 32)...)
	msg = append(msg, 0)

	raw := append([]byte{1}, make([]byte, 64)...)
	return base64.StdEncoding.EncodeToString(append(raw, msg...))
}

func TestSubmitter_Submit(t *testing.T) {
	kp, err := wallet.Generate()
	require.NoError(t, err)
	rpc := stub.NewRPCClient()

	sig, err := NewSubmitter(rpc).Submit(context.Background(), unsignedTxBase64(t, kp.PublicKey()), kp)
	require.NoError(t, err)
	assert.NotEmpty(t, sig)
	assert.Equal(t, 1, rpc.SentCount())
}

func TestSubmitter_CancelledBeforeSend(t *testing.T) {
	kp, _ := wallet.Generate()
	rpc := stub.NewRPCClient()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSubmitter(rpc).Submit(ctx, unsignedTxBase64(t, kp.PublicKey()), kp)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, rpc.SentCount(), "cancelled attempt must not submit")
}

func TestAmountConversions(t *testing.T) {
	assert.Equal(t, "10000000", SOLToLamports(0.01).String())
	assert.Equal(t, "1", SOLToLamports(0.0000000019).String())
	assert.Equal(t, "12345", AtomicUnits(12345.9).String())

	v, err := ParseAmount("987654321")
	require.NoError(t, err)
	assert.Equal(t, float64(987654321), v)

	_, err = ParseAmount("abc")
	assert.Error(t, err)
}
