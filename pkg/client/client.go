// Package client is a Go SDK for the gateway's WebSocket endpoint. It
// auto-assigns request ids and correlates interleaved server replies, so
// callers can issue concurrent requests on one connection.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"

	"github.com/freeradical/mcp-gateway/pkg/types"
)

// Client is one gateway connection.
type Client struct {
	ws *websocket.Conn

	writeMu sync.Mutex
	nextID  atomic.Int64

	mu      sync.Mutex
	pending map[string]chan *types.Response
	readErr error
	done    chan struct{}
}

// Dial connects to the gateway's /mcp endpoint. token may be empty for an
// anonymous session.
func Dial(ctx context.Context, url, token string) (*Client, error) {
	opts := &websocket.DialOptions{}
	if token != "" {
		opts.HTTPHeader = http.Header{"Authorization": []string{"Bearer " + token}}
	}
	ws, _, err := websocket.Dial(ctx, url, opts)
	if err != nil {
		return nil, fmt.Errorf("client.Dial %s: %w", url, err)
	}

	c := &Client{
		ws:      ws,
		pending: make(map[string]chan *types.Response),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// readLoop delivers each server reply to the waiter registered under its id.
func (c *Client) readLoop() {
	for {
		_, data, err := c.ws.Read(context.Background())
		if err != nil {
			c.fail(err)
			return
		}

		var resp types.Response
		if err := json.Unmarshal(data, &resp); err != nil {
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[string(resp.ID)]
		if ok {
			delete(c.pending, string(resp.ID))
		}
		c.mu.Unlock()
		if ok {
			ch <- &resp
		}
	}
}

func (c *Client) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readErr = err
	close(c.done)
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

// call sends one request and waits for its reply or the context deadline.
func (c *Client) call(ctx context.Context, method string, params any) (*types.Response, error) {
	id := fmt.Sprintf("%d", c.nextID.Add(1))
	req := types.Request{
		ProtocolVersion: types.ProtocolVersion,
		Method:          method,
		ID:              json.RawMessage(`"` + id + `"`),
	}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("client.call marshal params: %w", err)
		}
		req.Params = raw
	}

	ch := make(chan *types.Response, 1)
	key := string(req.ID)
	c.mu.Lock()
	if c.readErr != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("client.call: connection closed: %w", c.readErr)
	}
	c.pending[key] = ch
	c.mu.Unlock()

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("client.call marshal request: %w", err)
	}
	c.writeMu.Lock()
	err = c.ws.Write(ctx, websocket.MessageText, data)
	c.writeMu.Unlock()
	if err != nil {
		c.mu.Lock()
		delete(c.pending, key)
		c.mu.Unlock()
		return nil, fmt.Errorf("client.call write: %w", err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("client.call: connection closed: %w", c.readErr)
		}
		return resp, nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, key)
		c.mu.Unlock()
		return nil, ctx.Err()
	case <-c.done:
		return nil, fmt.Errorf("client.call: connection closed: %w", c.readErr)
	}
}

// InitializeResult is the server's handshake payload.
type InitializeResult struct {
	ProtocolVersion string `json:"protocol_version"`
	ServerInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"server_info"`
}

// Initialize performs the protocol handshake.
func (c *Client) Initialize(ctx context.Context) (*InitializeResult, error) {
	resp, err := c.call(ctx, "initialize", nil)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	var out InitializeResult
	if err := reparse(resp.Result, &out); err != nil {
		return nil, fmt.Errorf("client.Initialize: %w", err)
	}
	return &out, nil
}

// Ping checks connection liveness.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.call(ctx, "ping", nil)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return resp.Error
	}
	return nil
}

// ListTools returns every tool the connection's identity may see.
func (c *Client) ListTools(ctx context.Context) ([]types.ToolDescriptor, error) {
	resp, err := c.call(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	var out struct {
		Tools []types.ToolDescriptor `json:"tools"`
	}
	if err := reparse(resp.Result, &out); err != nil {
		return nil, fmt.Errorf("client.ListTools: %w", err)
	}
	return out.Tools, nil
}

// CallTool invokes a tool by name. A server-side tool error is returned as a
// *types.RPCError so callers can branch on its code.
func (c *Client) CallTool(ctx context.Context, name string, arguments any) (*types.CallResult, error) {
	var rawArgs json.RawMessage
	if arguments != nil {
		raw, err := json.Marshal(arguments)
		if err != nil {
			return nil, fmt.Errorf("client.CallTool marshal arguments: %w", err)
		}
		rawArgs = raw
	}

	resp, err := c.call(ctx, "tools/call", types.CallParams{Name: name, Arguments: rawArgs})
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	var out types.CallResult
	if err := reparse(resp.Result, &out); err != nil {
		return nil, fmt.Errorf("client.CallTool: %w", err)
	}
	return &out, nil
}

// ReadResource fetches one descriptive resource by URI.
func (c *Client) ReadResource(ctx context.Context, uri string) ([]types.ResourceContent, error) {
	resp, err := c.call(ctx, "resources/read", types.ReadResourceParams{URI: uri})
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	var out struct {
		Contents []types.ResourceContent `json:"contents"`
	}
	if err := reparse(resp.Result, &out); err != nil {
		return nil, fmt.Errorf("client.ReadResource: %w", err)
	}
	return out.Contents, nil
}

// Close tears down the connection.
func (c *Client) Close() error {
	return c.ws.Close(websocket.StatusNormalClosure, "")
}

// reparse moves a decoded result payload into a typed struct.
func reparse(result any, into any) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, into)
}
