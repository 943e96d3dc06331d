package rpcfetch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fortiblox/X1-Lens/internal/types"
)

// MaxMultipleAccounts is the node limit for getMultipleAccounts.
const MaxMultipleAccounts = 100

// RPCClient handles JSON-RPC requests to Solana endpoints.
type RPCClient struct {
	httpClient *http.Client
	pool       Pool
	limiter    *rate.Limiter
	commitment string
	encoding   Encoding
	logger     *zap.Logger
}

// Option configures an RPCClient.
type Option func(*RPCClient)

// WithRateLimit paces requests to rps with the given burst. Zero disables pacing.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *RPCClient) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithCommitment sets the commitment level sent with every read.
func WithCommitment(commitment string) Option {
	return func(c *RPCClient) { c.commitment = commitment }
}

// WithEncoding sets the account data encoding requested from the node.
func WithEncoding(encoding Encoding) Option {
	return func(c *RPCClient) { c.encoding = encoding }
}

// WithLogger sets the client logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *RPCClient) { c.logger = logger }
}

// NewRPCClient creates a new RPC client with the given pool.
func NewRPCClient(pool Pool, timeout time.Duration, opts ...Option) *RPCClient {
	c := &RPCClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		pool:       pool,
		commitment: "confirmed",
		encoding:   EncodingBase64,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC error.
type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// call makes a JSON-RPC call to a healthy endpoint.
func (c *RPCClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return errors.Wrap(err, "rate limiter")
		}
	}

	endpoint, err := c.pool.GetEndpoint(ctx)
	if err != nil {
		return errors.Wrap(err, "get endpoint")
	}

	start := time.Now()

	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return errors.Wrap(err, "marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.URL, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.pool.MarkUnhealthy(endpoint.URL, err)
		var netErr net.Error
		if ctx.Err() == nil && errors.As(err, &netErr) && netErr.Timeout() {
			return errors.Wrapf(ErrRequestTimeout, "%s", method)
		}
		return errors.Wrap(err, "http request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.pool.MarkUnhealthy(endpoint.URL, err)
		return errors.Wrap(err, "read response")
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		c.pool.MarkUnhealthy(endpoint.URL, ErrRateLimited)
		return errors.Wrapf(ErrRateLimited, "%s", method)
	}
	if resp.StatusCode != http.StatusOK {
		c.pool.MarkUnhealthy(endpoint.URL, errors.Errorf("status %d", resp.StatusCode))
		return errors.Errorf("http status %d: %s", resp.StatusCode, string(respBody))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		c.pool.MarkUnhealthy(endpoint.URL, err)
		return errors.Wrap(err, "unmarshal response")
	}

	if rpcResp.Error != nil {
		// RPC errors are not endpoint health issues
		return &RPCError{
			Code:    rpcResp.Error.Code,
			Message: rpcResp.Error.Message,
		}
	}

	if result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return errors.Wrap(err, "unmarshal result")
		}
	}

	latency := time.Since(start)
	c.pool.MarkHealthy(endpoint.URL, latency)
	c.logger.Debug("rpc call",
		zap.String("method", method),
		zap.String("endpoint", endpoint.URL),
		zap.Duration("latency", latency))
	return nil
}

// GetSlot fetches the current slot from the cluster.
func (c *RPCClient) GetSlot(ctx context.Context) (uint64, error) {
	params := []interface{}{
		map[string]interface{}{
			"commitment": c.commitment,
		},
	}

	var slot uint64
	if err := c.call(ctx, "getSlot", params, &slot); err != nil {
		return 0, err
	}
	return slot, nil
}

// AccountInfo is a decoded account as returned by the node.
type AccountInfo struct {
	Lamports   uint64
	Owner      types.Pubkey
	Data       []byte
	Executable bool
	RentEpoch  uint64
}

// KeyedAccount pairs an account with its address.
type KeyedAccount struct {
	Pubkey  types.Pubkey
	Account *AccountInfo
}

// accountResponse is the wire form of an account.
type accountResponse struct {
	Data       []string `json:"data"`
	Executable bool     `json:"executable"`
	Lamports   uint64   `json:"lamports"`
	Owner      string   `json:"owner"`
	RentEpoch  uint64   `json:"rentEpoch"`
}

func (r *accountResponse) toAccountInfo() (*AccountInfo, error) {
	owner, err := types.PubkeyFromBase58(r.Owner)
	if err != nil {
		return nil, errors.Wrapf(err, "owner %q", r.Owner)
	}
	data, err := decodeDataField(r.Data)
	if err != nil {
		return nil, errors.Wrap(err, "decode account data")
	}
	return &AccountInfo{
		Lamports:   r.Lamports,
		Owner:      owner,
		Data:       data,
		Executable: r.Executable,
		RentEpoch:  r.RentEpoch,
	}, nil
}

// DataSlice limits the returned account data.
type DataSlice struct {
	Offset uint64 `json:"offset"`
	Length uint64 `json:"length"`
}

// MemcmpFilter matches accounts whose data has Bytes at Offset.
type MemcmpFilter struct {
	Offset uint64
	Bytes  []byte
}

// ProgramAccountsOptions narrows a getProgramAccounts scan.
type ProgramAccountsOptions struct {
	Memcmp    []MemcmpFilter
	DataSize  *uint64
	DataSlice *DataSlice
}

func (c *RPCClient) accountConfig(slice *DataSlice) map[string]interface{} {
	cfg := map[string]interface{}{
		"encoding":   string(c.encoding),
		"commitment": c.commitment,
	}
	if slice != nil {
		cfg["dataSlice"] = slice
	}
	return cfg
}

// GetAccountInfo fetches one account. It returns nil, nil when the account
// does not exist.
func (c *RPCClient) GetAccountInfo(ctx context.Context, address types.Pubkey) (*AccountInfo, error) {
	params := []interface{}{address.String(), c.accountConfig(nil)}

	var resp struct {
		Value *accountResponse `json:"value"`
	}
	if err := c.call(ctx, "getAccountInfo", params, &resp); err != nil {
		return nil, err
	}
	if resp.Value == nil {
		return nil, nil
	}
	return resp.Value.toAccountInfo()
}

// GetMultipleAccounts fetches up to MaxMultipleAccounts accounts. The result
// is index-aligned with addresses; missing accounts are nil.
func (c *RPCClient) GetMultipleAccounts(ctx context.Context, addresses []types.Pubkey) ([]*AccountInfo, error) {
	if len(addresses) > MaxMultipleAccounts {
		return nil, errors.Wrapf(ErrTooManyAccounts, "%d > %d", len(addresses), MaxMultipleAccounts)
	}
	if len(addresses) == 0 {
		return nil, nil
	}

	keys := make([]string, len(addresses))
	for i, a := range addresses {
		keys[i] = a.String()
	}
	params := []interface{}{keys, c.accountConfig(nil)}

	var resp struct {
		Value []*accountResponse `json:"value"`
	}
	if err := c.call(ctx, "getMultipleAccounts", params, &resp); err != nil {
		return nil, err
	}
	if len(resp.Value) != len(addresses) {
		return nil, errors.Errorf("getMultipleAccounts returned %d accounts for %d addresses", len(resp.Value), len(addresses))
	}

	out := make([]*AccountInfo, len(addresses))
	for i, v := range resp.Value {
		if v == nil {
			continue
		}
		info, err := v.toAccountInfo()
		if err != nil {
			return nil, errors.Wrapf(err, "account %s", keys[i])
		}
		out[i] = info
	}
	return out, nil
}

// GetProgramAccounts scans every account owned by program that matches opts.
func (c *RPCClient) GetProgramAccounts(ctx context.Context, program types.Pubkey, opts ProgramAccountsOptions) ([]KeyedAccount, error) {
	cfg := c.accountConfig(opts.DataSlice)

	var filters []interface{}
	for _, m := range opts.Memcmp {
		filters = append(filters, map[string]interface{}{
			"memcmp": map[string]interface{}{
				"offset": m.Offset,
				"bytes":  base58.Encode(m.Bytes),
			},
		})
	}
	if opts.DataSize != nil {
		filters = append(filters, map[string]interface{}{"dataSize": *opts.DataSize})
	}
	if len(filters) > 0 {
		cfg["filters"] = filters
	}

	params := []interface{}{program.String(), cfg}

	var resp []struct {
		Pubkey  string          `json:"pubkey"`
		Account accountResponse `json:"account"`
	}
	if err := c.call(ctx, "getProgramAccounts", params, &resp); err != nil {
		return nil, err
	}

	out := make([]KeyedAccount, 0, len(resp))
	for _, r := range resp {
		key, err := types.PubkeyFromBase58(r.Pubkey)
		if err != nil {
			return nil, errors.Wrapf(err, "pubkey %q", r.Pubkey)
		}
		info, err := r.Account.toAccountInfo()
		if err != nil {
			return nil, errors.Wrapf(err, "account %s", r.Pubkey)
		}
		out = append(out, KeyedAccount{Pubkey: key, Account: info})
	}
	return out, nil
}
