package bundler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/0xPexy/petpay-backend/internal/userop"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
)

var entryPoint = common.HexToAddress("0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789")

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// newRPCServer answers every call with the body produced by reply.
func newRPCServer(t *testing.T, status int, reply func(req rpcRequest) string) *rpc.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req rpcRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply(req))
	}))
	t.Cleanup(srv.Close)
	client, err := rpc.DialHTTP(srv.URL)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

func testOp(t *testing.T) *userop.UserOperation {
	t.Helper()
	op, err := userop.BuildTransferOp(
		common.HexToAddress("0x00000000000000000000000000000000000000a1"),
		common.HexToAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e"),
		common.HexToAddress("0x00000000000000000000000000000000000000b2"),
		big.NewInt(1), big.NewInt(0),
	)
	if err != nil {
		t.Fatalf("build op: %v", err)
	}
	return op
}

func TestSubmitReturnsOperationHash(t *testing.T) {
	var gotMethod string
	var gotParams int
	rc := newRPCServer(t, http.StatusOK, func(req rpcRequest) string {
		gotMethod = req.Method
		gotParams = len(req.Params)
		return `{"jsonrpc":"2.0","id":` + string(req.ID) + `,"result":"0xop123"}`
	})
	hash, err := New(rc, nil).Submit(context.Background(), testOp(t), entryPoint)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if hash != "0xop123" {
		t.Fatalf("unexpected hash %s", hash)
	}
	if gotMethod != "eth_sendUserOperation" || gotParams != 2 {
		t.Fatalf("unexpected call %s with %d params", gotMethod, gotParams)
	}
}

func TestSubmitFailures(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
	}{
		"http error": {http.StatusBadGateway, `upstream down`},
		"rpc error":  {http.StatusOK, `{"jsonrpc":"2.0","id":1,"error":{"code":-32500,"message":"AA21 didn't pay prefund"}}`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rc := newRPCServer(t, tc.status, func(req rpcRequest) string {
				return strings.Replace(tc.body, `"id":1`, `"id":`+string(req.ID), 1)
			})
			_, err := New(rc, nil).Submit(context.Background(), testOp(t), entryPoint)
			if !errors.Is(err, ErrSubmission) {
				t.Fatalf("expected ErrSubmission, got %v", err)
			}
		})
	}
}

func TestReceipt(t *testing.T) {
	rc := newRPCServer(t, http.StatusOK, func(req rpcRequest) string {
		var hash string
		_ = json.Unmarshal(req.Params[0], &hash)
		if hash == "0xpending" {
			return `{"jsonrpc":"2.0","id":` + string(req.ID) + `,"result":null}`
		}
		return `{"jsonrpc":"2.0","id":` + string(req.ID) + `,"result":{"success":true,"receipt":{"transactionHash":"0x00000000000000000000000000000000000000000000000000000000000000aa"}}}`
	})
	client := New(rc, nil)

	receipt, err := client.Receipt(context.Background(), "0xpending")
	if err != nil || receipt != nil {
		t.Fatalf("expected no receipt, got %+v %v", receipt, err)
	}
	receipt, err = client.Receipt(context.Background(), "0xop123")
	if err != nil {
		t.Fatalf("receipt: %v", err)
	}
	if !receipt.Success || receipt.Receipt.TransactionHash != common.HexToHash("0xaa") {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
}
