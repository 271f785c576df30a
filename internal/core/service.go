package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"viewcore/pkg/domain"
)

// Request is one submission of a view. A request without a state token is
// an initial request: the view is built and rendered without executing.
type Request struct {
	ViewID     string
	Params     url.Values
	StateToken string
}

// Response carries the rendered output and the token of the saved state.
type Response struct {
	ViewID     string
	Body       []byte
	StateToken string
	Messages   []domain.Message
}

// Service runs requests against registered views.
type Service struct {
	states    *StateManager
	lifecycle *Lifecycle
	renderKit *RenderKit
	resolver  ExpressionResolver
	logger    Logger
	metrics   MetricsRecorder
	tracer    Tracer

	mu    sync.RWMutex
	views map[string]ViewBuilder
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger handed to every request.
func WithLogger(l Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records requests and phases.
func WithMetrics(m MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer traces requests and phases.
func WithTracer(t Tracer) ServiceOption {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithRenderKit replaces the basic render kit.
func WithRenderKit(k *RenderKit) ServiceOption {
	return func(s *Service) {
		if k != nil {
			s.renderKit = k
		}
	}
}

// WithResolver sets the expression resolver used for value bindings.
func WithResolver(r ExpressionResolver) ServiceOption {
	return func(s *Service) { s.resolver = r }
}

// NewService returns a service saving views through states. The service's
// recorder and tracer also observe states unless it was given its own.
func NewService(states *StateManager, opts ...ServiceOption) *Service {
	s := &Service{
		states:    states,
		renderKit: NewBasicRenderKit(),
		logger:    NopLogger(),
		metrics:   noopMetrics{},
		tracer:    noopTracer{},
		views:     make(map[string]ViewBuilder),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lifecycle = NewLifecycle(WithLifecycleMetrics(s.metrics), WithLifecycleTracer(s.tracer))
	if states != nil {
		states.adoptObservers(s.metrics, s.tracer)
	}
	return s
}

// Lifecycle exposes the lifecycle so hosts can add phase listeners.
func (s *Service) Lifecycle() *Lifecycle { return s.lifecycle }

// RegisterView installs the builder for viewID.
func (s *Service) RegisterView(viewID string, build ViewBuilder) error {
	if viewID == "" || build == nil {
		return fmt.Errorf("view registration needs an id and a builder: %w", ErrInvalidArgument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.views[viewID]; dup {
		return fmt.Errorf("view %s already registered: %w", viewID, ErrInvalidArgument)
	}
	s.views[viewID] = build
	return nil
}

func (s *Service) builder(viewID string) (ViewBuilder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.views[viewID]
	return b, ok
}

// Handle restores or builds the view, runs the lifecycle, saves the
// resulting state and returns the rendered body. Lifecycle errors are
// returned together with the response rendered after them.
func (s *Service) Handle(ctx context.Context, req Request) (Response, error) {
	var resp Response
	err := observe(ctx, s.metrics, s.tracer, "request", func(ctx context.Context) error {
		var herr error
		resp, herr = s.handle(ctx, req)
		return herr
	})
	return resp, err
}

func (s *Service) handle(ctx context.Context, req Request) (Response, error) {
	build, ok := s.builder(req.ViewID)
	if !ok {
		return Response{}, domain.ErrViewNotFound{ViewID: req.ViewID}
	}
	var body bytes.Buffer
	rc := NewRequestContext(ctx, nil)
	if req.Params != nil {
		rc.Params = req.Params
	}
	rc.RenderKit = s.renderKit
	rc.Resolver = s.resolver
	rc.Logger = s.logger
	rc.Writer = &body

	postback := req.StateToken != ""
	err := s.lifecycle.Restore(rc, func() error {
		var rerr error
		if postback {
			_, rerr = s.states.RestoreView(rc, req.ViewID, req.StateToken, build)
		} else {
			_, rerr = s.states.BuildView(rc, req.ViewID, build)
		}
		return rerr
	})
	if err != nil {
		return Response{}, err
	}

	var runErr error
	if postback {
		runErr = s.lifecycle.Run(rc)
	} else {
		runErr = s.lifecycle.Render(rc)
	}
	if runErr != nil {
		s.logger.Error("request processing failed", "view", req.ViewID, "err", runErr)
	}
	token, saveErr := s.states.SaveView(rc)
	resp := Response{
		ViewID:     req.ViewID,
		Body:       body.Bytes(),
		StateToken: token,
		Messages:   rc.Messages(),
	}
	return resp, errors.Join(runErr, saveErr)
}
