// Package ledger talks to the external chain gateway that anchors issued
// certificates. The gateway owns keys and transaction submission; this client
// only speaks its HTTP API.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrTokenNotFound indicates the gateway has no record of the token.
var ErrTokenNotFound = errors.New("ledger: token not found")

// TokenInfo describes an anchored certificate token.
type TokenInfo struct {
	TokenID  string `json:"token_id"`
	Owner    string `json:"owner"`
	Serial   string `json:"serial"`
	TxHash   string `json:"tx_hash"`
	MintedAt string `json:"minted_at"`
	Revoked  bool   `json:"revoked"`
}

// Gateway is the operations certificate issuance needs from the chain.
type Gateway interface {
	Ping(ctx context.Context) error
	Mint(ctx context.Context, serial, metadataURI string) (*TokenInfo, error)
	Transfer(ctx context.Context, tokenID, newOwner string) (*TokenInfo, error)
	Revoke(ctx context.Context, tokenID string) error
	TokenInfo(ctx context.Context, tokenID string) (*TokenInfo, error)
	IsAssociated(ctx context.Context, owner, tokenID string) (bool, error)
}

// Client wraps interactions with the gateway API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a new client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Ping checks if the remote gateway is available.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/health", c.baseURL), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("ledger gateway returned status %d", resp.StatusCode)
	}
	return nil
}

// Mint anchors a new certificate and returns the token record.
func (c *Client) Mint(ctx context.Context, serial, metadataURI string) (*TokenInfo, error) {
	payload := map[string]string{"serial": serial, "metadata_uri": metadataURI}
	var info TokenInfo
	if err := c.post(ctx, "/tokens/mint", payload, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Transfer moves token ownership to the claiming candidate's address.
func (c *Client) Transfer(ctx context.Context, tokenID, newOwner string) (*TokenInfo, error) {
	payload := map[string]string{"token_id": tokenID, "new_owner": newOwner}
	var info TokenInfo
	if err := c.post(ctx, "/tokens/transfer", payload, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Revoke marks the token revoked on chain.
func (c *Client) Revoke(ctx context.Context, tokenID string) error {
	payload := map[string]string{"token_id": tokenID}
	return c.post(ctx, "/tokens/revoke", payload, nil)
}

// TokenInfo fetches the current on-chain state of a token.
func (c *Client) TokenInfo(ctx context.Context, tokenID string) (*TokenInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/tokens/%s", c.baseURL, tokenID), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrTokenNotFound
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("token info failed with status %d", resp.StatusCode)
	}
	var info TokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, err
	}
	return &info, nil
}

// IsAssociated reports whether the owner address currently holds the token.
func (c *Client) IsAssociated(ctx context.Context, owner, tokenID string) (bool, error) {
	info, err := c.TokenInfo(ctx, tokenID)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return false, nil
		}
		return false, err
	}
	return info.Owner == owner && !info.Revoked, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode == http.StatusNotFound {
		return ErrTokenNotFound
	}
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ledger gateway %s failed with status %d: %s", path, resp.StatusCode, msg)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

var _ Gateway = (*Client)(nil)
