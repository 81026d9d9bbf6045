package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// rpcServer fakes a ledger node: one handler per RPC method.
func rpcServer(t *testing.T, handlers map[string]func(params []any) (any, *RPCError)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req RPCRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		h, ok := handlers[req.Method]
		if !ok {
			t.Fatalf("unexpected method: %s", req.Method)
		}
		result, rpcErr := h(req.Params)
		resp := RPCResponse{JSONRPC: "2.0", ID: req.ID}
		if rpcErr != nil {
			resp.Error = rpcErr
		} else {
			raw, err := json.Marshal(result)
			if err != nil {
				t.Fatalf("marshal result: %v", err)
			}
			resp.Result = raw
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := NewClient(Config{RPCURL: url, NetworkID: 42, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestTokenTotalSupply(t *testing.T) {
	srv := rpcServer(t, map[string]func([]any) (any, *RPCError){
		"invokefunction": func(params []any) (any, *RPCError) {
			if params[1] != "totalSupply" {
				t.Fatalf("unexpected operation: %v", params[1])
			}
			return InvokeResult{
				State: "HALT",
				Stack: []StackItem{{Type: "Integer", Value: json.RawMessage(`"123456"`)}},
			}, nil
		},
	})
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	supply, err := c.TokenTotalSupply(context.Background(), "0xtoken")
	if err != nil {
		t.Fatalf("total supply: %v", err)
	}
	if supply != 123456 {
		t.Fatalf("supply = %d, want 123456", supply)
	}
}

func TestTokenTotalSupplyFaultedVM(t *testing.T) {
	srv := rpcServer(t, map[string]func([]any) (any, *RPCError){
		"invokefunction": func([]any) (any, *RPCError) {
			return InvokeResult{State: "FAULT", Exception: "no such contract"}, nil
		},
	})
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	if _, err := c.TokenTotalSupply(context.Background(), "0xtoken"); err == nil {
		t.Fatal("expected error for faulted invocation")
	}
}

func TestBalanceDeltas(t *testing.T) {
	srv := rpcServer(t, map[string]func([]any) (any, *RPCError){
		"getbalancedeltas": func(params []any) (any, *RPCError) {
			if params[0] != "0xabc" {
				t.Fatalf("unexpected tx hash: %v", params[0])
			}
			return TransactionDeltas{
				TxHash:        "0xabc",
				Confirmations: 3,
				Deltas: []BalanceDelta{
					{Account: "payer", Pre: 1000, Post: 400},
					{Account: "treasury", Pre: 0, Post: 600},
				},
			}, nil
		},
	})
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	deltas, err := c.BalanceDeltas(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("balance deltas: %v", err)
	}

	d, ok := deltas.Participant("treasury")
	if !ok {
		t.Fatal("treasury participant missing")
	}
	if d.Delta() != 600 {
		t.Fatalf("treasury delta = %d, want 600", d.Delta())
	}
	if _, ok := deltas.Participant("stranger"); ok {
		t.Fatal("unexpected participant")
	}
}

func TestWaitForTokenBoundedAttempts(t *testing.T) {
	calls := 0
	srv := rpcServer(t, map[string]func([]any) (any, *RPCError){
		"getcontractstate": func([]any) (any, *RPCError) {
			calls++
			return nil, &RPCError{Code: -100, Message: "Unknown contract"}
		},
	})
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	err := c.WaitForToken(context.Background(), "0xmissing", 3, time.Millisecond)
	if err == nil {
		t.Fatal("expected not-visible error")
	}
	if calls != 3 {
		t.Fatalf("attempts = %d, want exactly 3", calls)
	}
}

func TestWaitForTokenSucceedsOnceVisible(t *testing.T) {
	calls := 0
	srv := rpcServer(t, map[string]func([]any) (any, *RPCError){
		"getcontractstate": func([]any) (any, *RPCError) {
			calls++
			if calls < 2 {
				return nil, &RPCError{Code: -100, Message: "Unknown contract"}
			}
			return ContractState{Hash: "0xtok"}, nil
		},
	})
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	if err := c.WaitForToken(context.Background(), "0xtok", 5, time.Millisecond); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestSubmitEnvelope(t *testing.T) {
	srv := rpcServer(t, map[string]func([]any) (any, *RPCError){
		"submitenvelope": func(params []any) (any, *RPCError) {
			if params[0] != "artifact-base64" {
				t.Fatalf("unexpected artifact: %v", params[0])
			}
			return map[string]string{"hash": "0xsubmitted"}, nil
		},
	})
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	hash, err := c.SubmitEnvelope(context.Background(), "artifact-base64")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if hash != "0xsubmitted" {
		t.Fatalf("hash = %s", hash)
	}
}

func TestCallSurfacesRPCError(t *testing.T) {
	srv := rpcServer(t, map[string]func([]any) (any, *RPCError){
		"getblockcount": func([]any) (any, *RPCError) {
			return nil, &RPCError{Code: -32601, Message: "method not found"}
		},
	})
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	if _, err := c.GetBlockCount(context.Background()); err == nil {
		t.Fatal("expected rpc error")
	}
}
