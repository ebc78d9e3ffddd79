package application

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"deliveryman-auth/auth/domain"
	"deliveryman-auth/auth/infra"
)

type fakeLookup struct {
	reply   domain.LookupReply
	err     error
	cpf     string
	timeout time.Duration
	calls   int
}

func (f *fakeLookup) Call(_ context.Context, cpf string, timeout time.Duration) (domain.LookupReply, error) {
	f.calls++
	f.cpf = cpf
	f.timeout = timeout
	return f.reply, f.err
}

// plainVerifier considera válida a senha cujo "hash" é "hash:"+senha.
type plainVerifier struct {
	calls int
}

func (v *plainVerifier) Compare(plaintext, hash string) bool {
	v.calls++
	return hash == "hash:"+plaintext
}

type fakeIssuer struct {
	claims domain.Claims
	secret []byte
	ttl    time.Duration
	err    error
	calls  int
}

func (f *fakeIssuer) Sign(c domain.Claims, secret []byte, ttl time.Duration) (string, error) {
	f.calls++
	f.claims, f.secret, f.ttl = c, secret, ttl
	if f.err != nil {
		return "", f.err
	}
	return "token-for-" + c.Subject, nil
}

type fakePublisher struct {
	events []domain.AuthEvent
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, ev domain.AuthEvent) error {
	f.events = append(f.events, ev)
	return f.err
}

type authFixture struct {
	lookup    *fakeLookup
	verifier  *plainVerifier
	issuer    *fakeIssuer
	publisher *fakePublisher
	auth      *Authenticator
}

func newAuthFixture(reply domain.LookupReply, err error) *authFixture {
	f := &authFixture{
		lookup:    &fakeLookup{reply: reply, err: err},
		verifier:  &plainVerifier{},
		issuer:    &fakeIssuer{},
		publisher: &fakePublisher{},
	}
	f.auth = NewAuthenticator(f.lookup, f.verifier, f.issuer, f.publisher, AuthenticatorConfig{
		Secret:        []byte("s3cret"),
		LookupTimeout: 7 * time.Second,
	}, nil)
	f.auth.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return f
}

func activeRecord() *domain.Deliveryman {
	return &domain.Deliveryman{
		ID:           "user-id",
		CPF:          "123.456.789-01",
		Name:         "João Silva",
		PasswordHash: "hash:123456",
		Active:       true,
	}
}

func TestAuthenticator_Login_IssuesTokenAndPublishesEvent(t *testing.T) {
	f := newAuthFixture(domain.LookupReply{Found: true, Record: activeRecord()}, nil)

	res, err := f.auth.Login(context.Background(), "123.456.789-01", "123456")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := domain.Subject{ID: "user-id", CPF: "123.456.789-01", Role: domain.RoleDeliveryman}
	if res.Subject != want {
		t.Fatalf("expected subject %+v, got %+v", want, res.Subject)
	}
	if res.Token != "token-for-user-id" {
		t.Fatalf("unexpected token %q", res.Token)
	}

	if f.lookup.cpf != "12345678901" || f.lookup.timeout != 7*time.Second {
		t.Fatalf("expected lookup with normalized cpf and configured timeout, got %q %s", f.lookup.cpf, f.lookup.timeout)
	}
	if f.issuer.ttl != DefaultTokenTTL || string(f.issuer.secret) != "s3cret" {
		t.Fatalf("expected default ttl and configured secret, got %s %q", f.issuer.ttl, f.issuer.secret)
	}
	if f.issuer.claims.Role != domain.RoleDeliveryman || f.issuer.claims.CPF != "123.456.789-01" {
		t.Fatalf("unexpected claims %+v", f.issuer.claims)
	}

	if len(f.publisher.events) != 1 {
		t.Fatalf("expected one event, got %d", len(f.publisher.events))
	}
	ev := f.publisher.events[0]
	wantEv := domain.AuthEvent{
		EventType: domain.EventUserAuthenticated,
		UserID:    "user-id",
		CPF:       "123.456.789-01",
		Role:      domain.RoleDeliveryman,
		Timestamp: "2024-01-01T00:00:00.000Z",
	}
	if ev != wantEv {
		t.Fatalf("expected event %+v, got %+v", wantEv, ev)
	}
}

func TestAuthenticator_Login_RejectsUniformly(t *testing.T) {
	inactive := activeRecord()
	inactive.Active = false
	noHash := activeRecord()
	noHash.PasswordHash = ""

	cases := map[string]struct {
		reply    domain.LookupReply
		err      error
		password string
	}{
		"timeout":        {err: domain.ErrTimedOut, password: "123456"},
		"not found":      {reply: domain.LookupReply{Found: false}, password: "123456"},
		"inactive":       {reply: domain.LookupReply{Found: true, Record: inactive}, password: "123456"},
		"missing hash":   {reply: domain.LookupReply{Found: true, Record: noHash}, password: "123456"},
		"wrong password": {reply: domain.LookupReply{Found: true, Record: activeRecord()}, password: "nope"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			f := newAuthFixture(tc.reply, tc.err)

			res, err := f.auth.Login(context.Background(), "12345678901", tc.password)
			if err != domain.ErrInvalidCredentials {
				t.Fatalf("expected the bare ErrInvalidCredentials, got %v", err)
			}
			if res != (domain.LoginResult{}) {
				t.Fatalf("expected empty result, got %+v", res)
			}
			if f.issuer.calls != 0 {
				t.Fatalf("no token should be issued")
			}
			if len(f.publisher.events) != 0 {
				t.Fatalf("no event should be published")
			}
		})
	}
}

func TestAuthenticator_Login_InactiveSkipsPasswordCheck(t *testing.T) {
	rec := activeRecord()
	rec.Active = false
	f := newAuthFixture(domain.LookupReply{Found: true, Record: rec}, nil)

	_, _ = f.auth.Login(context.Background(), "12345678901", "123456")
	if f.verifier.calls != 0 {
		t.Fatalf("verifier must not run for inactive records")
	}
}

func TestAuthenticator_Login_InvalidInputNeverReachesQueue(t *testing.T) {
	f := newAuthFixture(domain.LookupReply{}, nil)

	for _, in := range [][2]string{{"123", "123456"}, {"12345678901", ""}} {
		if _, err := f.auth.Login(context.Background(), in[0], in[1]); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials for %q, got %v", in, err)
		}
	}
	if f.lookup.calls != 0 {
		t.Fatalf("expected no lookup, got %d", f.lookup.calls)
	}
}

func TestAuthenticator_Login_TransportErrorsPropagate(t *testing.T) {
	transport := domain.NewTransportError("receive", "responses", errBoom)
	f := newAuthFixture(domain.LookupReply{}, transport)

	_, err := f.auth.Login(context.Background(), "12345678901", "123456")
	if !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("transport errors must not be collapsed into the rejection")
	}
}

func TestAuthenticator_Login_SignFailurePropagates(t *testing.T) {
	f := newAuthFixture(domain.LookupReply{Found: true, Record: activeRecord()}, nil)
	f.issuer.err = errBoom

	_, err := f.auth.Login(context.Background(), "12345678901", "123456")
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected sign error, got %v", err)
	}
	if len(f.publisher.events) != 0 {
		t.Fatalf("no event should be published when signing fails")
	}
}

func TestAuthenticator_Login_EventFailureDoesNotUndoLogin(t *testing.T) {
	f := newAuthFixture(domain.LookupReply{Found: true, Record: activeRecord()}, nil)
	f.publisher.err = domain.NewTransportError("send", eventQ, errBoom)

	res, err := f.auth.Login(context.Background(), "12345678901", "123456")
	if err != nil {
		t.Fatalf("expected login to succeed despite event failure, got %v", err)
	}
	if res.Token == "" {
		t.Fatalf("expected token")
	}
}

// Fluxo completo pelo motor real e pela fila em memória.
func TestAuthenticator_Login_EndToEndThroughQueues(t *testing.T) {
	q := infra.NewMemoryQueue(infra.WithMemoryVisibility(5 * time.Millisecond))
	active := activeRecord()
	inactive := activeRecord()
	inactive.ID, inactive.CPF, inactive.Active = "inactive-id", "987.654.321-00", false
	startResponder(t, q, func(cpf string) (domain.Deliveryman, bool) {
		switch cpf {
		case active.CPF:
			return *active, true
		case inactive.CPF:
			return *inactive, true
		}
		return domain.Deliveryman{}, false
	})

	opts := fastOptions()
	engine := NewRequestReply(q, &seqIDs{prefix: "corr"}, opts, nil)
	emitter := NewEventEmitter(q, eventQ, nil)
	auth := NewAuthenticator(engine, &plainVerifier{}, &fakeIssuer{}, emitter, AuthenticatorConfig{
		Secret:        []byte("s3cret"),
		LookupTimeout: time.Second,
	}, nil)

	res, err := auth.Login(context.Background(), "123.456.789-01", "123456")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Subject.CPF != "123.456.789-01" || res.Subject.ID != "user-id" {
		t.Fatalf("unexpected subject %+v", res.Subject)
	}

	events := q.Bodies(eventQ)
	if len(events) != 1 {
		t.Fatalf("expected one event on the event queue, got %d", len(events))
	}
	var ev domain.AuthEvent
	if err := json.Unmarshal([]byte(events[0]), &ev); err != nil {
		t.Fatalf("bad event body: %v", err)
	}
	if ev.EventType != domain.EventUserAuthenticated || ev.UserID != "user-id" {
		t.Fatalf("unexpected event %+v", ev)
	}

	for _, cpf := range []string{"98765432100", "00000000000"} {
		if _, err := auth.Login(context.Background(), cpf, "123456"); !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("expected rejection for %s, got %v", cpf, err)
		}
	}
	if got := q.Len(eventQ); got != 1 {
		t.Fatalf("rejected logins must not publish events, got %d", got)
	}
}

func TestAuthenticator_Login_EndToEndTimeoutRejects(t *testing.T) {
	q := infra.NewMemoryQueue()
	engine := NewRequestReply(q, &seqIDs{prefix: "corr"}, fastOptions(), nil)
	pub := &fakePublisher{}
	auth := NewAuthenticator(engine, &plainVerifier{}, &fakeIssuer{}, pub, AuthenticatorConfig{LookupTimeout: 30 * time.Millisecond}, nil)

	_, err := auth.Login(context.Background(), "12345678901", "123456")
	if err != domain.ErrInvalidCredentials {
		t.Fatalf("expected uniform rejection on timeout, got %v", err)
	}
	if len(pub.events) != 0 {
		t.Fatalf("no event expected")
	}
}
