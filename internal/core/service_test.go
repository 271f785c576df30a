package core_test

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"viewcore/internal/codec"
	"viewcore/internal/core"
	"viewcore/internal/infra/persistence/memory"
	"viewcore/pkg/domain"
)

type signupApp struct {
	user  *account
	saved int
}

// register installs "signup" and "toggle". Listeners and actions are attached
// by the builders on every request.
func (a *signupApp) register(t *testing.T, svc *core.Service) {
	t.Helper()
	err := svc.RegisterView("signup", func(_ *core.RequestContext, root *core.ViewRoot) error {
		form := mustID(core.NewForm(), "f")
		name := mustID(core.NewInput(), "name")
		name.SetRequired(true)
		name.SetValueBinding("value", "#{user.name}")
		save := mustID(core.NewCommand(), "save")
		save.SetAction(func(*core.RequestContext) error {
			a.saved++
			return nil
		})
		mustAdd(root, form)
		mustAdd(form, name, save)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	err = svc.RegisterView("toggle", func(_ *core.RequestContext, root *core.ViewRoot) error {
		form := mustID(core.NewForm(), "f")
		msg := mustID(core.NewOutput(), "msg")
		msg.SetValue("hi")
		hide := mustID(core.NewCommand(), "hide")
		hide.SetAction(func(*core.RequestContext) error {
			msg.SetRendered(false)
			return nil
		})
		mustAdd(root, form)
		mustAdd(form, msg, hide)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func newServerService(t *testing.T, opts ...core.ServiceOption) (*core.Service, *memory.Store, *signupApp) {
	t.Helper()
	store := memory.NewStore(0)
	states, err := core.NewStateManager(core.WithServerState(store))
	if err != nil {
		t.Fatal(err)
	}
	app := &signupApp{user: &account{}}
	opts = append([]core.ServiceOption{core.WithResolver(core.NewMapResolver(map[string]any{"user": app.user}))}, opts...)
	svc := core.NewService(states, opts...)
	app.register(t, svc)
	return svc, store, app
}

func params(pairs ...string) url.Values {
	v := url.Values{}
	for i := 0; i+1 < len(pairs); i += 2 {
		v.Add(pairs[i], pairs[i+1])
	}
	return v
}

func TestServicePostbackCycle(t *testing.T) {
	svc, store, app := newServerService(t)
	ctx := context.Background()

	first, err := svc.Handle(ctx, core.Request{ViewID: "signup"})
	if err != nil {
		t.Fatalf("initial request: %v", err)
	}
	if got := string(first.Body); got != "form f {\ninput f:name \"\"\nbutton f:save\n}\n" {
		t.Fatalf("initial body:\n%s", got)
	}
	if len(first.StateToken) != 26 {
		t.Fatalf("state token %q is not a ULID", first.StateToken)
	}

	second, err := svc.Handle(ctx, core.Request{
		ViewID:     "signup",
		StateToken: first.StateToken,
		Params:     params("f", "", "f:name", "Ada", "f:save", ""),
	})
	if err != nil {
		t.Fatalf("postback: %v", err)
	}
	if app.user.Name != "Ada" || app.saved != 1 {
		t.Fatalf("model %+v saved %d", app.user, app.saved)
	}
	if !strings.Contains(string(second.Body), "input f:name \"Ada\"") {
		t.Fatalf("postback body:\n%s", second.Body)
	}
	if second.StateToken == first.StateToken {
		t.Fatalf("each save should get a fresh key")
	}

	third, err := svc.Handle(ctx, core.Request{
		ViewID:     "signup",
		StateToken: second.StateToken,
		Params:     params("f", "", "f:name", "", "f:save", ""),
	})
	if err != nil {
		t.Fatalf("invalid postback: %v", err)
	}
	if app.saved != 1 {
		t.Fatalf("action ran on invalid input")
	}
	if len(third.Messages) != 1 || third.Messages[0].Summary != "value is required" {
		t.Fatalf("messages: %+v", third.Messages)
	}
	if !strings.Contains(string(third.Body), "input f:name \"\" invalid") {
		t.Fatalf("invalid body:\n%s", third.Body)
	}

	saved, err := store.List(ctx, "signup")
	if err != nil || len(saved) != 3 {
		t.Fatalf("saved views: %d %v", len(saved), err)
	}
}

func TestServiceDeltaStateSurvivesRequests(t *testing.T) {
	svc, _, _ := newServerService(t)
	ctx := context.Background()

	first, err := svc.Handle(ctx, core.Request{ViewID: "toggle"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(first.Body), "text f:msg \"hi\"") {
		t.Fatalf("initial body:\n%s", first.Body)
	}

	second, err := svc.Handle(ctx, core.Request{ViewID: "toggle", StateToken: first.StateToken, Params: params("f", "", "f:hide", "")})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(second.Body), "f:msg") {
		t.Fatalf("message still rendered:\n%s", second.Body)
	}

	third, err := svc.Handle(ctx, core.Request{ViewID: "toggle", StateToken: second.StateToken, Params: params("f", "")})
	if err != nil {
		t.Fatal(err)
	}
	if got := string(third.Body); got != "form f {\nbutton f:hide\n}\n" {
		t.Fatalf("restored body:\n%s", got)
	}
}

func TestServiceErrors(t *testing.T) {
	svc, _, _ := newServerService(t)
	ctx := context.Background()

	_, err := svc.Handle(ctx, core.Request{ViewID: "missing"})
	var nf domain.ErrViewNotFound
	if !errors.As(err, &nf) || nf.ViewID != "missing" {
		t.Fatalf("expected view not found, got %v", err)
	}

	_, err = svc.Handle(ctx, core.Request{ViewID: "signup", StateToken: "01HZZZZZZZZZZZZZZZZZZZZZZZ"})
	if !errors.Is(err, domain.ErrViewExpired) {
		t.Fatalf("expected expired view, got %v", err)
	}

	first, err := svc.Handle(ctx, core.Request{ViewID: "signup"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = svc.Handle(ctx, core.Request{ViewID: "toggle", StateToken: first.StateToken})
	if !errors.Is(err, domain.ErrViewExpired) {
		t.Fatalf("token of another view should be rejected, got %v", err)
	}

	if err := svc.RegisterView("signup", func(*core.RequestContext, *core.ViewRoot) error { return nil }); !errors.Is(err, core.ErrInvalidArgument) {
		t.Fatalf("duplicate registration: %v", err)
	}
	if err := svc.RegisterView("", nil); !errors.Is(err, core.ErrInvalidArgument) {
		t.Fatalf("empty registration: %v", err)
	}
}

func TestServiceClientState(t *testing.T) {
	signer, err := codec.NewSigner([]byte("0123456789abcdef0123"), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	states, err := core.NewStateManager(core.WithClientState(signer))
	if err != nil {
		t.Fatal(err)
	}
	app := &signupApp{user: &account{}}
	svc := core.NewService(states, core.WithResolver(core.NewMapResolver(map[string]any{"user": app.user})))
	app.register(t, svc)
	ctx := context.Background()

	first, err := svc.Handle(ctx, core.Request{ViewID: "toggle"})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(first.StateToken, ".") != 2 {
		t.Fatalf("client token %q is not a JWT", first.StateToken)
	}
	second, err := svc.Handle(ctx, core.Request{ViewID: "toggle", StateToken: first.StateToken, Params: params("f", "", "f:hide", "")})
	if err != nil {
		t.Fatal(err)
	}
	third, err := svc.Handle(ctx, core.Request{ViewID: "toggle", StateToken: second.StateToken, Params: params("f", "")})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(third.Body), "f:msg") {
		t.Fatalf("client state lost the hidden flag:\n%s", third.Body)
	}

	_, err = svc.Handle(ctx, core.Request{ViewID: "signup", StateToken: second.StateToken})
	if !errors.Is(err, domain.ErrViewExpired) {
		t.Fatalf("token for another view: %v", err)
	}
	_, err = svc.Handle(ctx, core.Request{ViewID: "toggle", StateToken: second.StateToken + "x"})
	if !errors.Is(err, domain.ErrViewExpired) {
		t.Fatalf("tampered token: %v", err)
	}
}

func TestServiceObservability(t *testing.T) {
	rec := core.NewExpvarRecorder("")
	tr := core.NewJSONTracer(nil)
	svc, _, _ := newServerService(t, core.WithMetrics(rec), core.WithTracer(tr), core.WithLogger(&recordingLogger{}))
	ctx := context.Background()

	first, err := svc.Handle(ctx, core.Request{ViewID: "signup"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Handle(ctx, core.Request{ViewID: "signup", StateToken: first.StateToken, Params: params("f", "", "f:name", "Ada")}); err != nil {
		t.Fatal(err)
	}
	ops := rec.Snapshot().Operations
	for _, op := range []string{"request", "state.save", "state.restore", "phase.restore", "phase.decode", "phase.render"} {
		if ops[op].Count == 0 {
			t.Fatalf("operation %q not observed: %+v", op, ops)
		}
	}
	if ops["request"].Count != 2 || ops["state.restore"].Count != 1 {
		t.Fatalf("counts: %+v", ops)
	}
	if len(tr.Records()) == 0 {
		t.Fatalf("no spans recorded")
	}
}

func TestServiceKeepsStateManagerObservers(t *testing.T) {
	own := core.NewExpvarRecorder("")
	states, err := core.NewStateManager(core.WithServerState(memory.NewStore(0)), core.WithStateObservability(own, nil))
	if err != nil {
		t.Fatal(err)
	}
	svcRec := core.NewExpvarRecorder("")
	app := &signupApp{user: &account{}}
	svc := core.NewService(states, core.WithMetrics(svcRec), core.WithResolver(core.NewMapResolver(map[string]any{"user": app.user})))
	app.register(t, svc)
	if _, err := svc.Handle(context.Background(), core.Request{ViewID: "toggle"}); err != nil {
		t.Fatal(err)
	}
	if got := own.Snapshot().Operations["state.save"].Count; got != 1 {
		t.Fatalf("manager recorder saw %d saves", got)
	}
	if got := svcRec.Snapshot().Operations["state.save"].Count; got != 0 {
		t.Fatalf("service recorder replaced the manager's own: %d saves", got)
	}
	if got := svcRec.Snapshot().Operations["request"].Count; got != 1 {
		t.Fatalf("request observations: %d", got)
	}
}

func TestNewStateManagerNeedsAMethod(t *testing.T) {
	if _, err := core.NewStateManager(); !errors.Is(err, core.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	if _, err := core.NewStateManager(core.WithServerState(nil)); !errors.Is(err, core.ErrInvalidArgument) {
		t.Fatalf("nil store: %v", err)
	}
	if _, err := core.NewStateManager(core.WithClientState(nil)); !errors.Is(err, core.ErrInvalidArgument) {
		t.Fatalf("nil signer: %v", err)
	}
}
