package chain

import (
	"context"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// DialRPC opens a JSON-RPC client whose HTTP transport gives up after timeout.
func DialRPC(ctx context.Context, url string, timeout time.Duration) (*rpc.Client, error) {
	return rpc.DialOptions(ctx, url, rpc.WithHTTPClient(&http.Client{Timeout: timeout}))
}

// DialEth opens an ethclient over DialRPC.
func DialEth(ctx context.Context, url string, timeout time.Duration) (*ethclient.Client, error) {
	c, err := DialRPC(ctx, url, timeout)
	if err != nil {
		return nil, err
	}
	return ethclient.NewClient(c), nil
}
