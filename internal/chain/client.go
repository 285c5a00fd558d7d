package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Client manages RPC connections to every chain in a Registry
type Client struct {
	registry  *Registry
	overrides map[uint64][]string
	clients   map[uint64]*ethclient.Client
	mu        sync.Mutex
}

// NewClient creates a multi-chain client over registry. overrides replaces the
// RPC URL list of individual chains (e.g. from config).
func NewClient(registry *Registry, overrides map[uint64][]string) *Client {
	return &Client{
		registry:  registry,
		overrides: overrides,
		clients:   make(map[uint64]*ethclient.Client),
	}
}

// Registry returns the network registry backing this client
func (c *Client) Registry() *Registry {
	return c.registry
}

// Reader returns a Reader bound to chainID
func (c *Client) Reader(chainID uint64) *ChainReader {
	return &ChainReader{client: c, chainID: chainID}
}

func (c *Client) rpcURLs(p *NetworkProfile) []string {
	if urls, ok := c.overrides[p.ChainID]; ok && len(urls) > 0 {
		return urls
	}
	return p.RPCURLs
}

// getClient returns an ethclient for the given chain, creating one if needed.
// Holds the lock for the whole dial so concurrent callers never open
// duplicate connections.
func (c *Client) getClient(chainID uint64) (*ethclient.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client, exists := c.clients[chainID]; exists {
		return client, nil
	}

	profile, err := c.registry.Resolve(chainID)
	if err != nil {
		return nil, err
	}
	urls := c.rpcURLs(profile)
	if len(urls) == 0 {
		return nil, fmt.Errorf("no RPC URL configured for %s", profile.Name)
	}

	var lastErr error
	for _, rpcURL := range urls {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		client, err := ethclient.DialContext(ctx, rpcURL)
		cancel()

		if err != nil {
			lastErr = err
			continue
		}

		// Verify chain ID
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		remoteID, err := client.ChainID(ctx)
		cancel()

		if err != nil {
			client.Close()
			lastErr = err
			continue
		}

		if !remoteID.IsUint64() || remoteID.Uint64() != chainID {
			client.Close()
			lastErr = fmt.Errorf("chain ID mismatch: expected %d, got %s", chainID, remoteID.String())
			continue
		}

		c.clients[chainID] = client
		return client, nil
	}

	return nil, fmt.Errorf("failed to connect to %s: %w", profile.Name, lastErr)
}

// GetBalance returns the native balance for an address on a chain
func (c *Client) GetBalance(ctx context.Context, chainID uint64, address common.Address) (*big.Int, error) {
	client, err := c.getClient(chainID)
	if err != nil {
		return nil, err
	}
	return client.BalanceAt(ctx, address, nil)
}

// GetNonce returns the pending nonce for an address
func (c *Client) GetNonce(ctx context.Context, chainID uint64, address common.Address) (uint64, error) {
	client, err := c.getClient(chainID)
	if err != nil {
		return 0, err
	}
	return client.PendingNonceAt(ctx, address)
}

// CodeAt returns the deployed bytecode at address
func (c *Client) CodeAt(ctx context.Context, chainID uint64, address common.Address) ([]byte, error) {
	client, err := c.getClient(chainID)
	if err != nil {
		return nil, err
	}
	return client.CodeAt(ctx, address, nil)
}

// FeeEstimate returns the current gas price and, when the chain exposes a base
// fee, fee-market caps of 2*baseFee+tip.
func (c *Client) FeeEstimate(ctx context.Context, chainID uint64) (FeeEstimate, error) {
	client, err := c.getClient(chainID)
	if err != nil {
		return FeeEstimate{}, err
	}

	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return FeeEstimate{}, err
	}
	est := FeeEstimate{GasPrice: gasPrice}

	tip, err := client.SuggestGasTipCap(ctx)
	if err != nil {
		return est, nil
	}
	head, err := client.HeaderByNumber(ctx, nil)
	if err != nil || head.BaseFee == nil {
		return est, nil
	}

	maxFee := new(big.Int).Mul(head.BaseFee, big.NewInt(2))
	maxFee.Add(maxFee, tip)
	est.MaxFee = maxFee
	est.MaxPriorityFee = tip
	return est, nil
}

// SendTransaction sends a signed transaction to the network
func (c *Client) SendTransaction(ctx context.Context, chainID uint64, tx *types.Transaction) error {
	client, err := c.getClient(chainID)
	if err != nil {
		return err
	}
	return client.SendTransaction(ctx, tx)
}

// GetTransactionReceipt gets the receipt for a mined transaction
func (c *Client) GetTransactionReceipt(ctx context.Context, chainID uint64, txHash common.Hash) (*types.Receipt, error) {
	client, err := c.getClient(chainID)
	if err != nil {
		return nil, err
	}
	return client.TransactionReceipt(ctx, txHash)
}

// CallContract executes a read-only call at block (nil for latest)
func (c *Client) CallContract(ctx context.Context, chainID uint64, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	client, err := c.getClient(chainID)
	if err != nil {
		return nil, err
	}
	return client.CallContract(ctx, msg, block)
}

// FilterLogs runs an eth_getLogs query
func (c *Client) FilterLogs(ctx context.Context, chainID uint64, q ethereum.FilterQuery) ([]types.Log, error) {
	client, err := c.getClient(chainID)
	if err != nil {
		return nil, err
	}
	return client.FilterLogs(ctx, q)
}

// BlockNumber returns the latest block height
func (c *Client) BlockNumber(ctx context.Context, chainID uint64) (uint64, error) {
	client, err := c.getClient(chainID)
	if err != nil {
		return 0, err
	}
	return client.BlockNumber(ctx)
}

// Close closes all client connections
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, client := range c.clients {
		client.Close()
	}
	c.clients = make(map[uint64]*ethclient.Client)
}
