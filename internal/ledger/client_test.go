package ledger_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certchain/certchain/internal/ledger"
)

func newGatewayServer(t *testing.T, handler http.HandlerFunc) *ledger.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return ledger.NewClient(server.URL)
}

func TestMintReturnsTokenInfo(t *testing.T) {
	client := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/tokens/mint", r.URL.Path)

		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "CERT-2026-0001", payload["serial"])

		_ = json.NewEncoder(w).Encode(ledger.TokenInfo{
			TokenID: "tok-1",
			Serial:  payload["serial"],
			Owner:   "inst-wallet",
			TxHash:  "0xabc",
		})
	})

	info, err := client.Mint(context.Background(), "CERT-2026-0001", "https://certchain.test/meta/1")

	require.NoError(t, err)
	assert.Equal(t, "tok-1", info.TokenID)
	assert.Equal(t, "0xabc", info.TxHash)
}

func TestTokenInfoNotFound(t *testing.T) {
	client := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.TokenInfo(context.Background(), "missing")

	require.ErrorIs(t, err, ledger.ErrTokenNotFound)
}

func TestIsAssociated(t *testing.T) {
	client := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ledger.TokenInfo{TokenID: "tok-2", Owner: "candidate-wallet"})
	})

	held, err := client.IsAssociated(context.Background(), "candidate-wallet", "tok-2")
	require.NoError(t, err)
	assert.True(t, held)

	held, err = client.IsAssociated(context.Background(), "someone-else", "tok-2")
	require.NoError(t, err)
	assert.False(t, held)
}

func TestIsAssociatedMissingTokenIsFalse(t *testing.T) {
	client := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	held, err := client.IsAssociated(context.Background(), "anyone", "gone")

	require.NoError(t, err)
	assert.False(t, held)
}

func TestRevokedTokenNotAssociated(t *testing.T) {
	client := newGatewayServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ledger.TokenInfo{TokenID: "tok-3", Owner: "candidate-wallet", Revoked: true})
	})

	held, err := client.IsAssociated(context.Background(), "candidate-wallet", "tok-3")

	require.NoError(t, err)
	assert.False(t, held)
}
