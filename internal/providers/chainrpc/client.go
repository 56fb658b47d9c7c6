package chainrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/walletbroker/internal/infrastructure/logging"
	"github.com/GriffinCanCode/walletbroker/internal/shared/codec"
	"github.com/GriffinCanCode/walletbroker/internal/shared/errs"
	"github.com/GriffinCanCode/walletbroker/internal/shared/utils"
)

// ErrNoEndpoint is returned for chains without a configured endpoint
var ErrNoEndpoint = fmt.Errorf("no rpc endpoint for chain")

// readOnly lists the provider methods that may be forwarded
var readOnly = map[string]struct{}{
	"eth_blockNumber":           {},
	"eth_call":                  {},
	"eth_estimateGas":           {},
	"eth_feeHistory":            {},
	"eth_gasPrice":              {},
	"eth_getBalance":            {},
	"eth_getBlockByHash":        {},
	"eth_getBlockByNumber":      {},
	"eth_getCode":               {},
	"eth_getLogs":               {},
	"eth_getStorageAt":          {},
	"eth_getTransactionByHash":  {},
	"eth_getTransactionCount":   {},
	"eth_getTransactionReceipt": {},
	"eth_maxPriorityFeePerGas":  {},
	"eth_syncing":               {},
	"web3_clientVersion":        {},
}

// Dialer opens a connection to url
type Dialer func(ctx context.Context, url string) (*rpc.Client, error)

// Client holds one lazily dialled connection per chain
type Client struct {
	mu        sync.Mutex
	endpoints map[string]string
	learned   map[string]struct{} // endpoints added at runtime, not configured
	conns     map[string]*rpc.Client
	dial      Dialer
	forward   bool
	logger    *logging.Logger
}

// New creates a client for endpoints keyed by decimal chain id
func New(endpoints map[string]string, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	c := &Client{
		endpoints: make(map[string]string, len(endpoints)),
		learned:   make(map[string]struct{}),
		conns:     make(map[string]*rpc.Client),
		dial:      rpc.DialContext,
		forward:   true,
		logger:    logger.Named("chainrpc"),
	}
	for chain, url := range endpoints {
		if id := utils.NormalizeChainID(chain); id != "" {
			c.endpoints[id] = url
		}
	}
	return c
}

// WithForwarding enables or disables forwarding of read-only methods
func (c *Client) WithForwarding(enabled bool) *Client {
	c.forward = enabled
	return c
}

// WithDialer replaces the dialer, for tests
func (c *Client) WithDialer(d Dialer) *Client {
	c.dial = d
	return c
}

// AddEndpoint registers url for chainID. A configured endpoint is never
// replaced; one added earlier at runtime is. It reports whether url is now
// the chain's endpoint.
func (c *Client) AddEndpoint(chainID, url string) bool {
	id := utils.NormalizeChainID(chainID)
	if id == "" || url == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if current, ok := c.endpoints[id]; ok {
		if _, learned := c.learned[id]; !learned {
			return false
		}
		if current == url {
			return true
		}
		c.dropConnLocked(id)
	}
	c.endpoints[id] = url
	c.learned[id] = struct{}{}
	c.logger.Info("Endpoint added", zap.String("chain", id), zap.String("url", url))
	return true
}

// RemoveEndpoint forgets an endpoint added with AddEndpoint. Configured
// endpoints stay. It reports whether an endpoint was removed.
func (c *Client) RemoveEndpoint(chainID string) bool {
	id := utils.NormalizeChainID(chainID)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, learned := c.learned[id]; !learned {
		return false
	}
	delete(c.learned, id)
	delete(c.endpoints, id)
	c.dropConnLocked(id)
	c.logger.Info("Endpoint removed", zap.String("chain", id))
	return true
}

func (c *Client) dropConnLocked(id string) {
	if conn, ok := c.conns[id]; ok {
		conn.Close()
		delete(c.conns, id)
	}
}

// Chains returns the decimal ids of chains with an endpoint
func (c *Client) Chains() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, 0, len(c.endpoints))
	for id := range c.endpoints {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// SendSigned submits a signed raw transaction and returns its hash
func (c *Client) SendSigned(ctx context.Context, chainID string, signed string) (string, error) {
	conn, err := c.conn(ctx, chainID)
	if err != nil {
		return "", err
	}

	var hash string
	if err := conn.CallContext(ctx, &hash, "eth_sendRawTransaction", signed); err != nil {
		return "", err
	}
	return hash, nil
}

// Forward answers a read-only provider method. eth_chainId and net_version
// are answered without a round trip.
func (c *Client) Forward(ctx context.Context, chainID string, method string, params json.RawMessage) (json.RawMessage, error) {
	chain, err := utils.ParseChainID(chainID)
	if err != nil {
		return nil, errs.Shape("%s: %v", method, err)
	}

	switch method {
	case "eth_chainId":
		return codec.Marshal(hexutil.EncodeBig(chain))
	case "net_version":
		return codec.Marshal(chain.String())
	}

	if _, ok := readOnly[method]; !ok || !c.forward {
		return nil, fmt.Errorf("%w: %s", errs.ErrUnsupportedMethod, method)
	}

	var args []json.RawMessage
	if !codec.IsEmpty(params) {
		if err := codec.Unmarshal(params, &args); err != nil {
			return nil, errs.Shape("%s: params must be an array", method)
		}
	}

	conn, err := c.conn(ctx, chain.String())
	if err != nil {
		return nil, err
	}

	var result json.RawMessage
	callArgs := make([]any, len(args))
	for i, a := range args {
		callArgs[i] = a
	}
	if err := conn.CallContext(ctx, &result, method, callArgs...); err != nil {
		return nil, err
	}
	return result, nil
}

// Close closes every open connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, conn := range c.conns {
		conn.Close()
		delete(c.conns, id)
	}
}

func (c *Client) conn(ctx context.Context, chainID string) (*rpc.Client, error) {
	id := utils.NormalizeChainID(chainID)

	c.mu.Lock()
	defer c.mu.Unlock()

	if conn, ok := c.conns[id]; ok {
		return conn, nil
	}
	url, ok := c.endpoints[id]
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrNoEndpoint, chainID)
	}

	conn, err := c.dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial chain %s: %w", id, err)
	}
	c.conns[id] = conn
	c.logger.Debug("Connected", zap.String("chain", id))
	return conn, nil
}
