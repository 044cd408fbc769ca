// Package mcp implements the gateway's WebSocket protocol endpoint: one
// persistent connection per agent, request/response envelopes matched by id.
package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"golang.org/x/time/rate"

	"github.com/freeradical/mcp-gateway/pkg/auth"
	"github.com/freeradical/mcp-gateway/pkg/types"
)

// ToolStore is the read slice of the datastore the protocol surface needs.
type ToolStore interface {
	GetToolByName(ctx context.Context, name, tenantID string) (*types.CustomTool, error)
	ListVisible(ctx context.Context, tenantID string, role types.Role) ([]types.CustomTool, error)
}

// ToolExecutor runs one custom tool call.
type ToolExecutor interface {
	Execute(ctx context.Context, tool *types.CustomTool, input json.RawMessage, tenantID, userID string) (json.RawMessage, error)
}

// Server handles WebSocket upgrades and serves connections. One Server is
// shared by all connections; per-connection state lives in conn.
type Server struct {
	verifier *auth.Verifier
	store    ToolStore
	exec     ToolExecutor
	log      *slog.Logger

	frameRate  rate.Limit
	frameBurst int
}

// NewServer wires the protocol surface. frameRate/frameBurst bound how fast a
// single connection may push frames.
func NewServer(verifier *auth.Verifier, store ToolStore, exec ToolExecutor, log *slog.Logger) *Server {
	return &Server{
		verifier:   verifier,
		store:      store,
		exec:       exec,
		log:        log,
		frameRate:  rate.Limit(25),
		frameBurst: 50,
	}
}

// conn is one accepted connection. Identity is fixed at upgrade time; the
// write mutex serializes responses from concurrent tools/call goroutines.
type conn struct {
	ws       *websocket.Conn
	identity types.Identity

	writeMu sync.Mutex
	calls   sync.WaitGroup
}

func (c *conn) send(ctx context.Context, resp *types.Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.Write(ctx, websocket.MessageText, data)
}

// HandleWS upgrades the request and runs the connection's read loop until the
// peer closes or a read fails. A missing or invalid token still upgrades: the
// connection is anonymous and per-method checks apply.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	identity := s.verifier.VerifyRequest(r)

	ws, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn("websocket accept failed", "error", err)
		return
	}

	c := &conn{ws: ws, identity: identity}
	s.log.Info("connection opened",
		"tenant_id", identity.TenantID, "user_id", identity.UserID,
		"role", identity.Role, "authenticated", identity.Authenticated())

	s.serve(r.Context(), c)

	c.calls.Wait()
	ws.Close(websocket.StatusNormalClosure, "")
	s.log.Info("connection closed", "tenant_id", identity.TenantID)
}

func (s *Server) serve(ctx context.Context, c *conn) {
	limiter := rate.NewLimiter(s.frameRate, s.frameBurst)

	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}

		typ, data, err := c.ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				s.log.Warn("read failed", "tenant_id", c.identity.TenantID, "error", err)
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		var req types.Request
		if err := json.Unmarshal(data, &req); err != nil {
			resp := types.Errorf(recoverID(data), types.RPCParseError(err.Error()))
			if err := c.send(ctx, resp); err != nil {
				return
			}
			continue
		}

		s.handle(ctx, c, &req)
	}
}

// handle answers one request. tools/call runs in its own goroutine so a slow
// webhook never blocks the read loop; everything else is answered inline.
func (s *Server) handle(ctx context.Context, c *conn, req *types.Request) {
	if req.Method == "tools/call" {
		c.calls.Add(1)
		go func() {
			defer c.calls.Done()
			resp := s.dispatch(ctx, c.identity, req)
			if err := c.send(ctx, resp); err != nil {
				s.log.Warn("write failed after tool call", "tenant_id", c.identity.TenantID, "error", err)
			}
		}()
		return
	}

	resp := s.dispatch(ctx, c.identity, req)
	if err := c.send(ctx, resp); err != nil {
		s.log.Warn("write failed", "tenant_id", c.identity.TenantID, "error", err)
	}
}

// recoverID pulls the id out of a frame that failed full envelope parsing.
// Returns nil (rendered as null) when the frame is not even a JSON object.
func recoverID(data []byte) json.RawMessage {
	var probe struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil
	}
	return probe.ID
}
