package core

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"viewcore/internal/codec"
	"viewcore/pkg/domain"
)

func init() {
	codec.Register(&TreeState{}, &DataState{}, InputRowState{}, FormRowState{})
}

// ViewBuilder populates a fresh root with the components of one view. It is
// called on every request; listeners, validators and actions are attached
// here because they are not part of saved state.
type ViewBuilder func(rc *RequestContext, root *ViewRoot) error

// StateManager saves trees between requests, either in a StateStore keyed by
// a generated id or as a signed token handed to the client.
type StateManager struct {
	method  domain.StateSavingMethod
	partial bool
	store   domain.StateStore
	signer  *codec.Signer
	metrics MetricsRecorder
	tracer  Tracer
	now     func() time.Time
	newKey  func() string
}

// StateManagerOption customizes a StateManager.
type StateManagerOption func(*StateManager)

// WithServerState keeps saved views in store.
func WithServerState(store domain.StateStore) StateManagerOption {
	return func(m *StateManager) {
		m.method = domain.StateSavingServer
		m.store = store
	}
}

// WithClientState hands saved views to the client as tokens signed by s.
func WithClientState(s *codec.Signer) StateManagerOption {
	return func(m *StateManager) {
		m.method = domain.StateSavingClient
		m.signer = s
	}
}

// WithPartialState toggles delta saving against the freshly built tree.
// It is on by default.
func WithPartialState(partial bool) StateManagerOption {
	return func(m *StateManager) { m.partial = partial }
}

// WithStateObservability records save and restore operations.
func WithStateObservability(metrics MetricsRecorder, tracer Tracer) StateManagerOption {
	return func(m *StateManager) {
		if metrics != nil {
			m.metrics = metrics
		}
		if tracer != nil {
			m.tracer = tracer
		}
	}
}

// adoptObservers fills in the recorder and tracer the manager was built
// without.
func (m *StateManager) adoptObservers(metrics MetricsRecorder, tracer Tracer) {
	if _, unset := m.metrics.(noopMetrics); unset && metrics != nil {
		m.metrics = metrics
	}
	if _, unset := m.tracer.(noopTracer); unset && tracer != nil {
		m.tracer = tracer
	}
}

// NewStateManager returns a manager. Exactly one of WithServerState and
// WithClientState must be given.
func NewStateManager(opts ...StateManagerOption) (*StateManager, error) {
	m := &StateManager{
		partial: true,
		metrics: noopMetrics{},
		tracer:  noopTracer{},
		now:     time.Now,
	}
	var mu sync.Mutex
	entropy := ulid.Monotonic(rand.Reader, 0)
	m.newKey = func() string {
		mu.Lock()
		defer mu.Unlock()
		return ulid.MustNew(ulid.Timestamp(m.now()), entropy).String()
	}
	for _, opt := range opts {
		opt(m)
	}
	switch m.method {
	case domain.StateSavingServer:
		if m.store == nil {
			return nil, fmt.Errorf("server state saving needs a store: %w", ErrInvalidArgument)
		}
	case domain.StateSavingClient:
		if m.signer == nil {
			return nil, fmt.Errorf("client state saving needs a signer: %w", ErrInvalidArgument)
		}
	default:
		return nil, fmt.Errorf("no state saving method configured: %w", ErrInvalidArgument)
	}
	return m, nil
}

// Method reports where saved views live.
func (m *StateManager) Method() domain.StateSavingMethod { return m.method }

// BuildView creates the tree for viewID, installs it as rc.Root and, with
// partial saving on, marks the built state as the baseline.
func (m *StateManager) BuildView(rc *RequestContext, viewID string, build ViewBuilder) (*ViewRoot, error) {
	root := NewViewRoot(viewID)
	rc.Root = root
	if build != nil {
		if err := build(rc, root); err != nil {
			return nil, fmt.Errorf("build view %s: %w", viewID, err)
		}
	}
	if m.partial {
		MarkInitialState(root)
	}
	return root, nil
}

// RestoreView rebuilds viewID and applies the state saved under token.
func (m *StateManager) RestoreView(rc *RequestContext, viewID, token string, build ViewBuilder) (*ViewRoot, error) {
	var root *ViewRoot
	err := observe(rc.Context(), m.metrics, m.tracer, "state.restore", func(ctx context.Context) error {
		payload, err := m.load(ctx, viewID, token)
		if err != nil {
			return err
		}
		snapshot, err := codec.Decode(payload)
		if err != nil {
			return err
		}
		root, err = m.BuildView(rc, viewID, build)
		if err != nil {
			return err
		}
		return RestoreTree(rc, root, snapshot)
	})
	return root, err
}

func (m *StateManager) load(ctx context.Context, viewID, token string) ([]byte, error) {
	if m.method == domain.StateSavingClient {
		vid, payload, err := m.signer.Verify(token)
		if err != nil {
			if errors.Is(err, codec.ErrToken) {
				return nil, fmt.Errorf("%w: %v", domain.ErrViewExpired, err)
			}
			return nil, err
		}
		if vid != viewID {
			return nil, fmt.Errorf("%w: token belongs to view %s", domain.ErrViewExpired, vid)
		}
		return payload, nil
	}
	sv, ok, err := m.store.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if !ok || sv.ViewID != viewID {
		return nil, domain.ErrViewExpired
	}
	return sv.Payload, nil
}

// SaveView saves rc.Root and returns the token identifying the saved state.
func (m *StateManager) SaveView(rc *RequestContext) (string, error) {
	if rc.Root == nil {
		return "", fmt.Errorf("save without a view root: %w", ErrInvalidArgument)
	}
	var token string
	err := observe(rc.Context(), m.metrics, m.tracer, "state.save", func(ctx context.Context) error {
		snapshot, err := SaveTree(rc.Root)
		if err != nil {
			return err
		}
		payload, err := codec.Encode(snapshot)
		if err != nil {
			return err
		}
		viewID := rc.Root.ViewID()
		if m.method == domain.StateSavingClient {
			token, err = m.signer.Sign(viewID, payload)
			return err
		}
		key := m.newKey()
		if err := m.store.Put(ctx, domain.SavedView{Key: key, ViewID: viewID, Payload: payload, CreatedAt: m.now().UTC()}); err != nil {
			return err
		}
		token = key
		return nil
	})
	return token, err
}
