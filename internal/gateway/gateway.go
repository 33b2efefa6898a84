// Package gateway accepts websocket connections from dashboards and card
// readers, runs the authentication handshake and pumps frames between the
// socket and the hub.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/gymgate/access-router/internal/auth"
	"github.com/gymgate/access-router/internal/hub"
	"github.com/gymgate/access-router/internal/logging"
	"github.com/gymgate/access-router/internal/metrics"
	"github.com/gymgate/access-router/internal/protocol"
)

// Defaults for Options fields left zero. Frames over ReadLimit are not
// answered with an error reply; the socket is closed with StatusMessageTooBig.
const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 5 * time.Second
	DefaultReadLimit        = 4096
)

// Handshake rejection reasons sent in auth-failed.
const (
	reasonInvalidToken  = "Invalid token"
	reasonInvalidSecret = "Invalid secret"
	reasonExpectedAuth  = "Expected auth-dashboard or auth-arduino"
	reasonMalformed     = "Invalid message"
)

var errHandshakeTimeout = errors.New("handshake timed out")

// Handler processes frames from authenticated clients.
type Handler interface {
	Handle(ctx context.Context, c *hub.Client, frame []byte)
}

// ModeClearer drops an operator's scan modes when its dashboard leaves.
type ModeClearer interface {
	Clear(operatorID int64)
}

// Options tunes the connection lifecycle.
type Options struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadLimit        int64
	SendBuffer       int
	// AllowedOrigins are host patterns for browser Origin checks.
	// Empty allows same-origin requests and clients that send no Origin.
	AllowedOrigins []string
}

func (o *Options) setDefaults() {
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = DefaultReadLimit
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = hub.DefaultSendBuffer
	}
}

// Server is an http.Handler serving the websocket endpoint.
type Server struct {
	verifier *auth.Verifier
	hub      *hub.Hub
	modes    ModeClearer
	handler  Handler
	opts     Options
	logger   *slog.Logger

	sessions sync.WaitGroup
}

// New creates a Server. If logger is nil, slog.Default() is used.
func New(verifier *auth.Verifier, h *hub.Hub, modes ModeClearer, handler Handler, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	opts.setDefaults()
	return &Server{
		verifier: verifier,
		hub:      h,
		modes:    modes,
		handler:  handler,
		opts:     opts,
		logger:   logger,
	}
}

// ServeHTTP upgrades the request and runs the connection until it closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.opts.AllowedOrigins,
	})
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}
	conn.SetReadLimit(s.opts.ReadLimit)

	s.sessions.Add(1)
	defer s.sessions.Done()

	ctx := r.Context()
	client, err := s.handshake(ctx, conn)
	if err != nil {
		s.logger.Info("handshake failed", "remote_addr", r.RemoteAddr, "error", err)
		_ = conn.Close(websocket.StatusPolicyViolation, "authentication failed")
		return
	}

	s.run(ctx, conn, client)
}

// Shutdown closes every live connection with StatusGoingAway and waits for
// their sessions to finish or for ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.CloseAll()

	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for websocket sessions: %w", ctx.Err())
	}
}

// handshake reads the first frame and authenticates it. On failure an
// auth-failed reply has been sent where possible.
func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) (*hub.Client, error) {
	hctx, cancel := context.WithTimeout(ctx, s.opts.HandshakeTimeout)
	defer cancel()

	_, data, err := conn.Read(hctx)
	if err != nil {
		if errors.Is(hctx.Err(), context.DeadlineExceeded) {
			metrics.RecordAuthFailure("handshake_timeout")
			return nil, errHandshakeTimeout
		}
		return nil, fmt.Errorf("read handshake: %w", err)
	}
	s.logFrame(ctx, "", data)

	m, err := protocol.Decode(data)
	if err != nil {
		metrics.RecordAuthFailure("malformed")
		return nil, s.reject(hctx, conn, reasonMalformed, err)
	}

	// Close waits for the peer's close frame, so shutdown must not block on it.
	closer := hub.WithCloser(func() {
		go func() { _ = conn.Close(websocket.StatusGoingAway, "server shutting down") }()
	})
	buffer := hub.WithSendBuffer(s.opts.SendBuffer)

	switch m.Kind() {
	case protocol.KindAuthDashboard:
		p, err := s.verifier.VerifyDashboardToken(m.Token)
		if err != nil {
			metrics.RecordAuthFailure("invalid_token")
			return nil, s.reject(hctx, conn, reasonInvalidToken, err)
		}
		client := hub.NewClient(hub.Dashboard, p.OperatorID, p.Super, "", closer, buffer)
		return client, s.accept(hctx, conn, client)

	case protocol.KindAuthDevice:
		if err := s.verifier.VerifyDeviceSecret(m.Secret); err != nil {
			metrics.RecordAuthFailure("invalid_secret")
			return nil, s.reject(hctx, conn, reasonInvalidSecret, err)
		}
		var operatorID int64
		if m.AdminID != nil && *m.AdminID > 0 {
			operatorID = *m.AdminID
		}
		super := operatorID == 0
		location := m.Location
		if super && location == "" {
			location = protocol.LocationSuperAdmin
		}
		client := hub.NewClient(hub.Device, operatorID, super, location, closer, buffer)
		return client, s.accept(hctx, conn, client)
	}

	metrics.RecordAuthFailure("unexpected_message")
	return nil, s.reject(hctx, conn, reasonExpectedAuth, fmt.Errorf("unexpected first message %q", m.Kind()))
}

func (s *Server) accept(ctx context.Context, conn *websocket.Conn, c *hub.Client) error {
	if err := wsjson.Write(ctx, conn, protocol.NewAuthSuccess(c.OperatorID, c.Super)); err != nil {
		return fmt.Errorf("write auth-success: %w", err)
	}
	return nil
}

func (s *Server) reject(ctx context.Context, conn *websocket.Conn, reason string, cause error) error {
	if err := wsjson.Write(ctx, conn, protocol.NewAuthFailed(reason)); err != nil {
		s.logger.Debug("failed to write auth-failed", "error", err)
	}
	return fmt.Errorf("%s: %w", reason, cause)
}

// run registers c and serves it until the socket closes.
func (s *Server) run(ctx context.Context, conn *websocket.Conn, c *hub.Client) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.hub.Register(c)
	defer func() {
		s.hub.Unregister(c)
		if c.Type == hub.Dashboard {
			s.modes.Clear(c.OperatorID)
		}
	}()

	go s.writePump(ctx, conn, c)

	// A scan that has been read runs to completion even if the socket drops.
	handleCtx := context.WithoutCancel(ctx)
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			s.logger.Debug("connection closed",
				"client_id", c.ID,
				"status", websocket.CloseStatus(err),
				"error", err)
			break
		}
		s.logFrame(ctx, c.ID, data)
		s.handler.Handle(handleCtx, c, data)
	}

	_ = conn.Close(websocket.StatusNormalClosure, "")
}

// writePump is the only writer after the handshake.
func (s *Server) writePump(ctx context.Context, conn *websocket.Conn, c *hub.Client) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-c.Outbound():
			wctx, cancel := context.WithTimeout(ctx, s.opts.WriteTimeout)
			err := conn.Write(wctx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				s.logger.Warn("write failed, closing connection", "client_id", c.ID, "error", err)
				_ = conn.Close(websocket.StatusInternalError, "write failed")
				return
			}
		}
	}
}

func (s *Server) logFrame(ctx context.Context, clientID string, data []byte) {
	if !s.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	s.logger.Debug("frame received",
		"client_id", clientID,
		"frame", string(logging.MaskFrame(data)),
	)
}
