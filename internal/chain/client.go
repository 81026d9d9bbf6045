// Package chain provides the ledger node RPC client the engine reads from
// and submits through.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrNotVisible is returned when a resource did not become visible within
// the bounded wait.
var ErrNotVisible = errors.New("resource not yet visible on ledger")

// Config holds client configuration.
type Config struct {
	RPCURL    string
	NetworkID uint32
	Timeout   time.Duration
}

// Client is a JSON-RPC client for the ledger node.
type Client struct {
	rpcURL     string
	httpClient *http.Client
	networkID  uint32
}

// NewClient creates a ledger client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("RPC URL required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		rpcURL:     cfg.RPCURL,
		httpClient: &http.Client{Timeout: timeout},
		networkID:  cfg.NetworkID,
	}, nil
}

// NetworkID returns the configured network magic.
func (c *Client) NetworkID() uint32 { return c.networkID }

// Call makes a JSON-RPC call to the ledger node.
func (c *Client) Call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	if params == nil {
		params = []any{}
	}

	req := RPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      1,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var rpcResp RPCResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}

	return rpcResp.Result, nil
}

// GetBlockCount returns the current block height.
func (c *Client) GetBlockCount(ctx context.Context) (uint64, error) {
	result, err := c.Call(ctx, "getblockcount")
	if err != nil {
		return 0, err
	}

	var count uint64
	if err := json.Unmarshal(result, &count); err != nil {
		return 0, fmt.Errorf("unmarshal block count: %w", err)
	}
	return count, nil
}

// InvokeFunction invokes a contract function read-only.
func (c *Client) InvokeFunction(ctx context.Context, scriptHash, operation string, params []any) (*InvokeResult, error) {
	if params == nil {
		params = []any{}
	}

	result, err := c.Call(ctx, "invokefunction", scriptHash, operation, params)
	if err != nil {
		return nil, err
	}

	var invokeResult InvokeResult
	if err := json.Unmarshal(result, &invokeResult); err != nil {
		return nil, fmt.Errorf("unmarshal invoke result: %w", err)
	}
	return &invokeResult, nil
}

// TokenTotalSupply reads the authoritative cumulative-issuance counter: the
// token contract's totalSupply.
func (c *Client) TokenTotalSupply(ctx context.Context, tokenHash string) (int64, error) {
	res, err := c.InvokeFunction(ctx, tokenHash, "totalSupply", nil)
	if err != nil {
		return 0, err
	}
	if res.State != "HALT" {
		return 0, fmt.Errorf("totalSupply failed: %s", res.Exception)
	}
	if len(res.Stack) == 0 {
		return 0, fmt.Errorf("totalSupply returned empty stack")
	}
	supply, err := ParseInteger(res.Stack[0])
	if err != nil {
		return 0, fmt.Errorf("parse totalSupply: %w", err)
	}
	return supply.Int64(), nil
}

// GetContractState returns the deployed state of a contract, or an error
// wrapping a not-found condition if the ledger does not know the hash.
func (c *Client) GetContractState(ctx context.Context, scriptHash string) (*ContractState, error) {
	result, err := c.Call(ctx, "getcontractstate", scriptHash)
	if err != nil {
		return nil, err
	}

	var state ContractState
	if err := json.Unmarshal(result, &state); err != nil {
		return nil, fmt.Errorf("unmarshal contract state: %w", err)
	}
	return &state, nil
}

// TokenExists reports whether a token contract is visible on the ledger.
func (c *Client) TokenExists(ctx context.Context, tokenHash string) (bool, error) {
	_, err := c.GetContractState(ctx, tokenHash)
	if err != nil {
		if isNotFoundError(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// RegisterToken asks the launch service on the node to deploy a curve token
// and returns its contract hash. The token may not be immediately visible;
// callers follow up with WaitForToken.
func (c *Client) RegisterToken(ctx context.Context, symbol string, decimals int, owner string) (string, error) {
	result, err := c.Call(ctx, "registercurvetoken", symbol, decimals, owner)
	if err != nil {
		return "", err
	}

	var response struct {
		Hash string `json:"hash"`
	}
	if err := json.Unmarshal(result, &response); err != nil {
		return "", fmt.Errorf("unmarshal register result: %w", err)
	}
	if response.Hash == "" {
		return "", fmt.Errorf("register returned empty hash")
	}
	return response.Hash, nil
}

// WaitForToken polls until a registered token becomes visible. The wait is
// bounded: a fixed delay between attempts and a hard attempt cap. Exceeding
// the cap returns ErrNotVisible rather than blocking indefinitely.
func (c *Client) WaitForToken(ctx context.Context, tokenHash string, attempts int, delay time.Duration) error {
	if attempts <= 0 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		exists, err := c.TokenExists(ctx, tokenHash)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("token %s after %d attempts: %w", tokenHash, attempts, ErrNotVisible)
}

// EnsureHoldingAccount idempotently materializes a holding account for the
// owner under the given token.
func (c *Client) EnsureHoldingAccount(ctx context.Context, owner, tokenHash string) error {
	_, err := c.Call(ctx, "ensureholdingaccount", owner, tokenHash)
	return err
}

// BalanceDeltas fetches the confirmed balance-change record for a
// transaction reference.
func (c *Client) BalanceDeltas(ctx context.Context, txHash string) (*TransactionDeltas, error) {
	result, err := c.Call(ctx, "getbalancedeltas", txHash)
	if err != nil {
		return nil, err
	}

	var deltas TransactionDeltas
	if err := json.Unmarshal(result, &deltas); err != nil {
		return nil, fmt.Errorf("unmarshal balance deltas: %w", err)
	}
	return &deltas, nil
}

// SubmitEnvelope sends a fully authorized transfer envelope for atomic
// execution and returns the transaction hash.
func (c *Client) SubmitEnvelope(ctx context.Context, artifact string) (string, error) {
	result, err := c.Call(ctx, "submitenvelope", artifact)
	if err != nil {
		return "", err
	}

	var response struct {
		Hash string `json:"hash"`
	}
	if err := json.Unmarshal(result, &response); err != nil {
		return "", fmt.Errorf("unmarshal submit result: %w", err)
	}
	return response.Hash, nil
}

func isNotFoundError(err error) bool {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.Code == -100 || strings.Contains(strings.ToLower(rpcErr.Message), "not found") ||
			strings.Contains(strings.ToLower(rpcErr.Message), "unknown")
	}
	return false
}
