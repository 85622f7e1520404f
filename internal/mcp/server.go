// ABOUTME: Request router for the MCP core: authenticate, route, authorize, execute, respond.
// ABOUTME: HandleRequest is the single error boundary; it never returns a Go error or panics.

package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"runtime/debug"
	"time"

	"github.com/2389/dbp-gateway/internal/auth"
	"github.com/2389/dbp-gateway/internal/mcperr"
)

// Authenticator resolves and checks caller permissions. *auth.Provider
// satisfies it.
type Authenticator interface {
	Authenticate(src auth.HeaderSource) (*auth.AuthContext, bool)
	Authorize(authCtx *auth.AuthContext, resourceType, resourceName, action string) bool
}

// Stage is a step of the request state machine. A failed request records the
// last stage it completed.
type Stage string

const (
	StageReceived      Stage = "received"
	StageAuthenticated Stage = "authenticated"
	StageRouted        Stage = "routed"
	StageAuthorized    Stage = "authorized"
	StageExecuted      Stage = "executed"
	StageResponded     Stage = "responded"
)

// RequestRecord summarizes a handled request for auditing.
type RequestRecord struct {
	RequestID string
	ClientID  string
	Kind      Kind
	Target    string
	Status    Status
	Code      mcperr.Code
	Stage     Stage
	Duration  time.Duration
	At        time.Time
}

// AuditSink receives one record per handled request. Failures are logged and
// never change the response.
type AuditSink interface {
	RecordRequest(ctx context.Context, rec RequestRecord) error
}

// Config holds configuration for the MCP server.
type Config struct {
	Tools     *ToolRegistry
	Resources *ResourceRegistry
	Auth      Authenticator
	Errors    *ErrorHandler // defaults to NewErrorHandler(Logger)
	Audit     AuditSink     // optional
	Logger    *slog.Logger
}

// Server routes requests to registered tools and resources. It holds no
// per-request state, so HandleRequest may run concurrently.
type Server struct {
	tools     *ToolRegistry
	resources *ResourceRegistry
	auth      Authenticator
	errors    *ErrorHandler
	audit     AuditSink
	logger    *slog.Logger
}

// NewServer creates a new MCP server with the given configuration.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Tools == nil {
		return nil, errors.New("tool registry is required")
	}
	if cfg.Resources == nil {
		return nil, errors.New("resource registry is required")
	}
	if cfg.Auth == nil {
		return nil, errors.New("authenticator is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	errHandler := cfg.Errors
	if errHandler == nil {
		errHandler = NewErrorHandler(logger)
	}

	return &Server{
		tools:     cfg.Tools,
		resources: cfg.Resources,
		auth:      cfg.Auth,
		errors:    errHandler,
		audit:     cfg.Audit,
		logger:    logger,
	}, nil
}

// panicError carries a recovered handler panic to the error handler.
type panicError struct {
	value any
	stack []byte
}

func (p *panicError) Error() string {
	return fmt.Sprintf("panic: %v", p.value)
}

// execution tracks one request through the state machine.
type execution struct {
	req     Request
	stage   Stage
	authCtx *auth.AuthContext
	started time.Time
}

// HandleRequest processes req and always returns a Response carrying req.ID.
// Every failure, including handler panics, is converted by the ErrorHandler.
func (s *Server) HandleRequest(ctx context.Context, req Request) Response {
	exec := &execution{req: req, stage: StageReceived, started: time.Now()}

	result, err := s.run(ctx, exec)

	var resp Response
	if err != nil {
		wireErr := s.errors.Handle(err, &req)
		resp = NewError(req.ID, wireErr)
		s.logger.Info("request failed",
			"request_id", req.ID,
			"kind", req.Kind,
			"target", req.Target,
			"stage", exec.stage,
			"code", wireErr.Code,
		)
	} else {
		exec.stage = StageResponded
		resp = NewSuccess(req.ID, result)
		s.logger.Debug("request succeeded",
			"request_id", req.ID,
			"kind", req.Kind,
			"target", req.Target,
			"client_id", clientID(exec.authCtx),
			"duration", time.Since(exec.started),
		)
	}

	s.record(ctx, exec, resp)
	return resp
}

// run executes the state machine. Panics below it are recovered into errors.
func (s *Server) run(ctx context.Context, exec *execution) (result map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			pe := &panicError{value: r, stack: debug.Stack()}
			s.logger.Error("handler panicked",
				"request_id", exec.req.ID,
				"stage", exec.stage,
				"panic", r,
				"stack", string(pe.stack),
			)
			result, err = nil, pe
		}
	}()

	req := exec.req

	authCtx, ok := s.auth.Authenticate(req)
	if !ok {
		return nil, &mcperr.AuthenticationError{Reason: "missing or unknown credential"}
	}
	exec.authCtx = authCtx
	exec.stage = StageAuthenticated

	if req.Target == "" {
		return nil, &mcperr.MalformedRequestError{Reason: "target is required"}
	}

	switch req.Kind {
	case KindTool:
		handler, found := s.tools.Get(req.Target)
		if !found {
			return nil, &mcperr.ToolNotFoundError{Name: req.Target}
		}
		exec.stage = StageRouted

		if err := s.authorize(authCtx, KindTool, req.Target, ActionExecute); err != nil {
			return nil, err
		}
		exec.stage = StageAuthorized

		result, err = handler.Execute(ctx, maps.Clone(req.Payload), authCtx)
		if err != nil {
			return nil, err
		}

	case KindResource:
		name, resourceID := SplitResourceTarget(req.Target)
		handler, found := s.resources.Get(name)
		if !found {
			return nil, &mcperr.ResourceNotFoundError{Name: name}
		}
		exec.stage = StageRouted

		if err := s.authorize(authCtx, KindResource, name, ActionGet); err != nil {
			return nil, err
		}
		exec.stage = StageAuthorized

		result, err = handler.Get(ctx, resourceID, maps.Clone(req.Payload), authCtx)
		if err != nil {
			return nil, err
		}

	default:
		return nil, &mcperr.MalformedRequestError{Reason: fmt.Sprintf("unknown request type %q", req.Kind)}
	}

	exec.stage = StageExecuted
	return result, nil
}

func (s *Server) authorize(authCtx *auth.AuthContext, kind Kind, name, action string) error {
	if s.auth.Authorize(authCtx, string(kind), name, action) {
		return nil
	}
	return &mcperr.AuthorizationError{
		ClientID:           clientID(authCtx),
		RequiredPermission: auth.RequiredPermission(string(kind), name, action),
	}
}

func (s *Server) record(ctx context.Context, exec *execution, resp Response) {
	if s.audit == nil {
		return
	}
	rec := RequestRecord{
		RequestID: exec.req.ID,
		ClientID:  clientID(exec.authCtx),
		Kind:      exec.req.Kind,
		Target:    exec.req.Target,
		Status:    resp.Status,
		Stage:     exec.stage,
		Duration:  time.Since(exec.started),
		At:        exec.started,
	}
	if resp.Error != nil {
		rec.Code = resp.Error.Code
	}
	// A cancelled request is still worth recording.
	if err := s.audit.RecordRequest(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Warn("failed to record request", "request_id", exec.req.ID, "error", err)
	}
}

// ToolDescriptors lists the tools authCtx may execute, in registration order.
func (s *Server) ToolDescriptors(authCtx *auth.AuthContext) []Descriptor {
	var out []Descriptor
	for _, h := range s.tools.List() {
		if s.auth.Authorize(authCtx, string(KindTool), h.Name(), ActionExecute) {
			out = append(out, Describe(h))
		}
	}
	return out
}

// ResourceDescriptors lists the resources authCtx may read, in registration order.
func (s *Server) ResourceDescriptors(authCtx *auth.AuthContext) []Descriptor {
	var out []Descriptor
	for _, h := range s.resources.List() {
		if s.auth.Authorize(authCtx, string(KindResource), h.Name(), ActionGet) {
			out = append(out, Describe(h))
		}
	}
	return out
}

// Authenticator returns the server's authenticator, for transports that
// authenticate outside HandleRequest (listing endpoints).
func (s *Server) Authenticator() Authenticator {
	return s.auth
}

func clientID(authCtx *auth.AuthContext) string {
	if authCtx == nil {
		return ""
	}
	return authCtx.ClientID
}
