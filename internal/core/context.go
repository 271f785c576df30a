package core

import (
	"context"
	"io"
	"net/url"

	"viewcore/pkg/domain"
)

// RequestScope holds per-request named values, such as the row variable
// exposed by a data iterator.
type RequestScope interface {
	Get(key string) (any, bool)
	Set(key string, value any)
	Delete(key string)
}

// MapScope is a RequestScope backed by a map.
type MapScope map[string]any

func (m MapScope) Get(key string) (any, bool) {
	v, ok := m[key]
	return v, ok
}

func (m MapScope) Set(key string, value any) { m[key] = value }

func (m MapScope) Delete(key string) { delete(m, key) }

// RequestContext carries everything one request needs while walking a tree.
// Its zero value is not usable; call NewRequestContext. A nil
// *RequestContext is tolerated by read-only helpers such as ClientID.
type RequestContext struct {
	ctx context.Context

	Root      *ViewRoot
	Params    url.Values
	Scope     RequestScope
	Resolver  ExpressionResolver
	RenderKit *RenderKit
	Logger    Logger
	Writer    io.Writer

	phase            domain.Phase
	messages         []domain.Message
	renderResponse   bool
	responseComplete bool
	validationFailed bool
}

// NewRequestContext returns a context with an empty scope and parameter set,
// the basic render kit and a discarding logger and writer.
func NewRequestContext(ctx context.Context, root *ViewRoot) *RequestContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return &RequestContext{
		ctx:       ctx,
		Root:      root,
		Params:    url.Values{},
		Scope:     MapScope{},
		RenderKit: NewBasicRenderKit(),
		Logger:    NopLogger(),
		Writer:    io.Discard,
	}
}

// Context returns the request's context.Context.
func (rc *RequestContext) Context() context.Context {
	if rc == nil || rc.ctx == nil {
		return context.Background()
	}
	return rc.ctx
}

// Phase returns the phase currently running.
func (rc *RequestContext) Phase() domain.Phase {
	if rc == nil {
		return domain.PhaseAny
	}
	return rc.phase
}

// Param returns the first submitted value for name.
func (rc *RequestContext) Param(name string) (string, bool) {
	if rc == nil || rc.Params == nil {
		return "", false
	}
	vs, ok := rc.Params[name]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

// AddMessage queues a diagnostic for the render phase.
func (rc *RequestContext) AddMessage(clientID string, sev domain.Severity, summary, detail string) {
	rc.messages = append(rc.messages, domain.Message{ClientID: clientID, Severity: sev, Summary: summary, Detail: detail})
}

// Messages returns every queued message in order.
func (rc *RequestContext) Messages() []domain.Message {
	return append([]domain.Message(nil), rc.messages...)
}

// MessagesFor returns the messages queued for one client id.
func (rc *RequestContext) MessagesFor(clientID string) []domain.Message {
	var out []domain.Message
	for _, m := range rc.messages {
		if m.ClientID == clientID {
			out = append(out, m)
		}
	}
	return out
}

// MaximumSeverity returns the highest severity queued so far.
func (rc *RequestContext) MaximumSeverity() (domain.Severity, bool) {
	if len(rc.messages) == 0 {
		return domain.SeverityInfo, false
	}
	max := rc.messages[0].Severity
	for _, m := range rc.messages[1:] {
		if m.Severity > max {
			max = m.Severity
		}
	}
	return max, true
}

// RenderResponse asks the lifecycle to skip straight to rendering once the
// current phase finishes.
func (rc *RequestContext) RenderResponse() { rc.renderResponse = true }

// RenderRequested reports whether RenderResponse was called.
func (rc *RequestContext) RenderRequested() bool { return rc.renderResponse }

// ResponseComplete tells the lifecycle that the response has been produced
// elsewhere; no further phases run, rendering included.
func (rc *RequestContext) ResponseComplete() { rc.responseComplete = true }

// Completed reports whether ResponseComplete was called.
func (rc *RequestContext) Completed() bool { return rc.responseComplete }

// MarkValidationFailed records that conversion or validation failed.
func (rc *RequestContext) MarkValidationFailed() { rc.validationFailed = true }

// ValidationFailed reports whether any input failed conversion or validation.
func (rc *RequestContext) ValidationFailed() bool { return rc.validationFailed }

func (rc *RequestContext) logger() Logger {
	if rc == nil || rc.Logger == nil {
		return noopLogger{}
	}
	return rc.Logger
}

func (rc *RequestContext) writer() io.Writer {
	if rc == nil || rc.Writer == nil {
		return io.Discard
	}
	return rc.Writer
}

func (rc *RequestContext) scope() RequestScope {
	if rc == nil {
		return nil
	}
	return rc.Scope
}

func (rc *RequestContext) delegateFor(c Component) RenderDelegate {
	if rc == nil || rc.RenderKit == nil {
		return nil
	}
	b := c.AsBase()
	rt := b.RendererType()
	if rt == "" {
		return nil
	}
	d, ok := rc.RenderKit.Delegate(b.Family(), rt)
	if !ok {
		rc.RenderKit.reportMissing(rc.logger(), b.Family(), rt)
		return nil
	}
	return d
}
