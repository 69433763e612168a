// Package client is a Go client for the signescrow JSON-RPC and event stream
// endpoints.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"signescrow/core"
	"signescrow/core/events"
	"signescrow/core/ledger"
	"signescrow/core/types"
	"signescrow/rpc"
)

const (
	// CodeContractError marks coded contract failures.
	CodeContractError = -32050
	// CodeBadNonce marks envelopes with a stale or future nonce.
	CodeBadNonce = -32011
)

// Error is a JSON-RPC error returned by the node.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Contract decodes the coded contract failure carried by e.
func (e *Error) Contract() (*rpc.ContractErrorData, bool) {
	if e == nil || e.Code != CodeContractError || len(e.Data) == 0 {
		return nil, false
	}
	var data rpc.ContractErrorData
	if err := json.Unmarshal(e.Data, &data); err != nil {
		return nil, false
	}
	return &data, true
}

// ContractError unwraps err into the contract failure, if any.
func ContractError(err error) (*rpc.ContractErrorData, bool) {
	var rpcErr *Error
	if !errors.As(err, &rpcErr) {
		return nil, false
	}
	return rpcErr.Contract()
}

// Client talks to one node.
type Client struct {
	endpoint   *url.URL
	httpClient *http.Client
	token      string
	nextID     atomic.Uint64
}

// Option mutates the client configuration during construction.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithBearerToken attaches a JWT to every request.
func WithBearerToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// New constructs a client pointed at the node RPC base URL.
func New(endpoint string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("endpoint required")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	c := &Client{
		endpoint:   parsed,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      uint64 `json:"id"`
}

type response struct {
	Result json.RawMessage `json:"result"`
	Error  *Error          `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, out any, params ...any) error {
	if params == nil {
		params = []any{}
	}
	payload, err := json.Marshal(request{JSONRPC: "2.0", Method: method, Params: params, ID: c.nextID.Add(1)})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return err
	}
	var decoded response
	if err := json.Unmarshal(body, &decoded); err != nil {
		return fmt.Errorf("%s: unexpected response (status %d): %w", method, resp.StatusCode, err)
	}
	if decoded.Error != nil {
		return decoded.Error
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(decoded.Result, out)
}

// Info returns the node network, sequence, state root and contracts.
func (c *Client) Info(ctx context.Context) (*core.Info, error) {
	var out core.Info
	if err := c.call(ctx, "ledger_info", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Nonce returns the last committed nonce of addr.
func (c *Client) Nonce(ctx context.Context, addr types.Principal) (uint64, error) {
	var out rpc.NonceResult
	if err := c.call(ctx, "ledger_nonce", &out, addr.String()); err != nil {
		return 0, err
	}
	return out.Nonce, nil
}

// Methods lists the dispatchable contract functions.
func (c *Client) Methods(ctx context.Context) ([]rpc.MethodResult, error) {
	var out []rpc.MethodResult
	if err := c.call(ctx, "ledger_methods", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Submit sends a signed envelope and waits for its receipt.
func (c *Client) Submit(ctx context.Context, env *types.Envelope) (*ledger.Receipt, error) {
	var out ledger.Receipt
	if err := c.call(ctx, "ledger_submit", &out, env); err != nil {
		return nil, err
	}
	return &out, nil
}

// Query runs a read-only function and decodes its value into out.
func (c *Client) Query(ctx context.Context, contract, function string, args []string, out any) error {
	if args == nil {
		args = []string{}
	}
	var result struct {
		Value json.RawMessage `json:"value"`
	}
	if err := c.call(ctx, "contract_query", &result, rpc.QueryParams{Contract: contract, Function: function, Args: args}); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(result.Value, out)
}

// Events lists archived events.
func (c *Client) Events(ctx context.Context, filter rpc.EventsParams) ([]events.Committed, error) {
	var out []events.Committed
	if err := c.call(ctx, "events_list", &out, filter); err != nil {
		return nil, err
	}
	return out, nil
}
