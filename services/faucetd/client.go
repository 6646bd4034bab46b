package faucetd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"burnfaucet/core/runtime"
	"burnfaucet/core/state"
	"burnfaucet/core/types"
	"burnfaucet/crypto"
	"burnfaucet/native/faucet"
)

// Client talks to a faucetd HTTP endpoint.
type Client struct {
	base *url.URL
	http *http.Client
}

// NewClient parses endpoint, for example "http://127.0.0.1:8090".
func NewClient(endpoint string, httpClient *http.Client) (*Client, error) {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	base, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("endpoint %q must include scheme and host", endpoint)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{base: base, http: httpClient}, nil
}

// Submit posts a signed transaction. Faucet failures unwrap to the matching
// sentinel error.
func (c *Client) Submit(ctx context.Context, tx *runtime.Transaction) (*runtime.Receipt, error) {
	body, err := json.Marshal(TransactionRequest{Nonce: tx.Nonce, Instructions: tx.Instructions, Signatures: tx.Signatures})
	if err != nil {
		return nil, err
	}
	var receipt runtime.Receipt
	if err := c.do(ctx, http.MethodPost, "/v1/transactions", bytes.NewReader(body), &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// ClaimStatus reports whether actor has claimed class.
func (c *Client) ClaimStatus(ctx context.Context, class faucet.ClaimClass, actor crypto.Address) (*faucet.ClaimStatus, error) {
	var status faucet.ClaimStatus
	path := "/v1/claims/" + strconv.Itoa(int(class)) + "/" + actor.String()
	if err := c.do(ctx, http.MethodGet, path, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) Treasury(ctx context.Context) (*TreasuryResponse, error) {
	var out TreasuryResponse
	if err := c.do(ctx, http.MethodGet, "/v1/treasury", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Account(ctx context.Context, addr crypto.Address) (*AccountResponse, error) {
	var out AccountResponse
	if err := c.do(ctx, http.MethodGet, "/v1/accounts/"+addr.String(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AccountProof fetches a Merkle proof for addr and verifies it locally. The
// returned account is the one the proof commits to.
func (c *Client) AccountProof(ctx context.Context, addr crypto.Address) (*state.AccountProof, *types.Account, error) {
	var proof state.AccountProof
	if err := c.do(ctx, http.MethodGet, "/v1/accounts/"+addr.String()+"/proof", nil, &proof); err != nil {
		return nil, nil, err
	}
	if proof.Address != addr {
		return nil, nil, fmt.Errorf("proof is for %s, asked for %s", proof.Address, addr)
	}
	acc, err := proof.Verify()
	if err != nil {
		return nil, nil, err
	}
	return &proof, acc, nil
}

// StreamEvents follows GET /v1/events and calls fn for each message until ctx
// ends, the server closes the stream, or fn returns an error. A non-empty
// cursor resumes after that sequence number.
func (c *Client) StreamEvents(ctx context.Context, cursor string, fn func(EventMessage) error) error {
	target := *c.base
	switch target.Scheme {
	case "https":
		target.Scheme = "wss"
	default:
		target.Scheme = "ws"
	}
	target.Path = strings.TrimRight(target.Path, "/") + "/v1/events"
	if cursor != "" {
		target.RawQuery = url.Values{"cursor": {cursor}}.Encode()
	}
	// The stream is bounded by ctx; websocket.Dial rejects clients with a timeout.
	httpClient := *c.http
	httpClient.Timeout = 0
	conn, _, err := websocket.Dial(ctx, target.String(), &websocket.DialOptions{HTTPClient: &httpClient})
	if err != nil {
		return fmt.Errorf("dial event stream: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "client done")
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return err
		}
		var msg EventMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		if err := fn(msg); err != nil {
			return err
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if resp.StatusCode/100 != 2 {
		var failure ErrorResponse
		if err := json.Unmarshal(raw, &failure); err != nil {
			failure.Error = strings.TrimSpace(string(raw))
		}
		return decodeError(resp.StatusCode, failure)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
