// Package chain is the boundary to the blockchain node: RPC dialing, key
// loading, transaction signing and the contract connectors.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Client wraps the ethereum client with the chain ID it was dialed against.
type Client struct {
	*ethclient.Client
	chainID *big.Int
}

// createHTTPClient creates an HTTP client for a single sequential sender.
func createHTTPClient() *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        4,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		DisableKeepAlives:   false,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   30 * time.Second,
	}
}

// Dial connects to an HTTP(S), WS(S) or IPC endpoint. A bare file system path
// is treated as an IPC socket.
func Dial(ctx context.Context, endpoint string) (*Client, error) {
	rpcClient, err := rpc.DialOptions(ctx, endpoint, rpc.WithHTTPClient(createHTTPClient()))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize rpc client for %s: %w", endpoint, err)
	}

	cli := ethclient.NewClient(rpcClient)

	chainID, err := cli.ChainID(ctx)
	if err != nil {
		rpcClient.Close()
		return nil, fmt.Errorf("failed to query chain id from %s: %w", endpoint, err)
	}

	return &Client{
		Client:  cli,
		chainID: chainID,
	}, nil
}

// CachedChainID returns the chain ID queried once at dial time.
func (c *Client) CachedChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}
