package chain

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// RPCRequest is a JSON-RPC request.
type RPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      int    `json:"id"`
}

// RPCResponse is a JSON-RPC response.
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC error.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// InvokeResult is the result of a read-only invokefunction call.
type InvokeResult struct {
	Script      string      `json:"script"`
	State       string      `json:"state"`
	GasConsumed string      `json:"gasconsumed"`
	Exception   string      `json:"exception,omitempty"`
	Stack       []StackItem `json:"stack"`
}

// StackItem is a VM stack item.
type StackItem struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// ParseInteger parses an Integer stack item.
func ParseInteger(item StackItem) (*big.Int, error) {
	if item.Type != "Integer" {
		return nil, fmt.Errorf("unexpected type: %s", item.Type)
	}
	var value string
	if err := json.Unmarshal(item.Value, &value); err != nil {
		return nil, err
	}
	n, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("malformed integer: %q", value)
	}
	return n, nil
}

// ContractState is the on-ledger state of a deployed contract.
type ContractState struct {
	ID            int    `json:"id"`
	UpdateCounter int    `json:"updatecounter"`
	Hash          string `json:"hash"`
}

// BalanceDelta is one participant's confirmed balance change in a
// transaction: the base-currency balance before and after execution.
type BalanceDelta struct {
	Account string `json:"account"`
	Pre     int64  `json:"pre"`
	Post    int64  `json:"post"`
}

// Delta returns the signed balance change.
func (b BalanceDelta) Delta() int64 { return b.Post - b.Pre }

// TransactionDeltas is the confirmed balance-change record for a
// transaction, keyed by participant.
type TransactionDeltas struct {
	TxHash        string         `json:"txhash"`
	Confirmations int            `json:"confirmations"`
	Deltas        []BalanceDelta `json:"deltas"`
}

// Participant returns the delta for an account, if present.
func (t *TransactionDeltas) Participant(account string) (BalanceDelta, bool) {
	for _, d := range t.Deltas {
		if d.Account == account {
			return d, true
		}
	}
	return BalanceDelta{}, false
}
