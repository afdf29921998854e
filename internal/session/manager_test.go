package session

import (
	"context"
	"errors"
	"os"
	"testing"

	"mailerbot/internal/platform"
	logx "mailerbot/pkg/logx"
)

// fakeClient scripts the platform side of the login protocol. SaveSession
// writes the credential file the way a real client would, so persist/load
// round-trips exercise the actual file handling.
type fakeClient struct {
	path       string
	authorized bool

	codeErr     error
	signInErr   error
	passwordErr error

	connectCalls    int
	disconnectCalls int
	gotCode         string
	gotChallenge    string
}

func (c *fakeClient) Connect(context.Context) error { c.connectCalls++; return nil }
func (c *fakeClient) Disconnect() error             { c.disconnectCalls++; return nil }
func (c *fakeClient) IsAuthorized(context.Context) (bool, error) {
	return c.authorized, nil
}

func (c *fakeClient) RequestCode(_ context.Context, phone string) (string, error) {
	if c.codeErr != nil {
		return "", c.codeErr
	}
	return "challenge-" + phone, nil
}

func (c *fakeClient) SignIn(_ context.Context, _, code, challenge string) (platform.Identity, error) {
	c.gotCode = code
	c.gotChallenge = challenge
	if c.signInErr != nil {
		return platform.Identity{}, c.signInErr
	}
	c.authorized = true
	return platform.Identity{ID: 77, Username: "tester"}, nil
}

func (c *fakeClient) SignInWithPassword(_ context.Context, _ string) (platform.Identity, error) {
	if c.passwordErr != nil {
		return platform.Identity{}, c.passwordErr
	}
	c.authorized = true
	return platform.Identity{ID: 77}, nil
}

func (c *fakeClient) SaveSession() error {
	return os.WriteFile(c.path, []byte("blob"), 0o600)
}

func (c *fakeClient) Me(context.Context) (platform.Identity, error) {
	return platform.Identity{ID: 77}, nil
}
func (c *fakeClient) Groups(context.Context, int) ([]platform.Group, error) { return nil, nil }
func (c *fakeClient) ParticipantRole(context.Context, int64, int64) (platform.Role, error) {
	return platform.RoleMember, nil
}
func (c *fakeClient) ResolveGroup(context.Context, int64) (platform.Group, error) {
	return platform.Group{}, nil
}
func (c *fakeClient) SendMessage(context.Context, int64, string) error { return nil }
func (c *fakeClient) SendFile(context.Context, int64, string, string, bool) error {
	return nil
}

type fakeDialer struct {
	next *fakeClient
	err  error
}

func (d *fakeDialer) Dial(_ context.Context, path string) (platform.Client, error) {
	if d.err != nil {
		return nil, d.err
	}
	c := d.next
	if c == nil {
		c = &fakeClient{}
	}
	c.path = path
	return c, nil
}

func newTestManager(t *testing.T, d *fakeDialer) *Manager {
	t.Helper()
	m, err := NewManager(t.TempDir(), d, logx.Nop())
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}
	return m
}

func TestBeginLoginPhoneValidation(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, &fakeDialer{})
	ctx := context.Background()

	for _, phone := range []string{"", "15551234567", "+1555", "+1555123456789012", "word"} {
		if err := m.BeginLogin(ctx, 1, phone); !errors.Is(err, ErrPhoneFormat) {
			t.Fatalf("BeginLogin(%q) = %v, want ErrPhoneFormat", phone, err)
		}
	}
}

func TestDigitByDigitLogin(t *testing.T) {
	t.Parallel()
	client := &fakeClient{}
	m := newTestManager(t, &fakeDialer{next: client})
	ctx := context.Background()

	if err := m.BeginLogin(ctx, 1, "+15551234567"); err != nil {
		t.Fatalf("BeginLogin error: %v", err)
	}

	// Fewer digits than the code length only report progress.
	for i, d := range []string{"1", "2", "3", "4"} {
		res, err := m.SubmitCodeDigit(ctx, 1, d)
		if err != nil {
			t.Fatalf("digit %d error: %v", i+1, err)
		}
		if res.Authenticated || res.NeedSecondFactor {
			t.Fatalf("premature sign-in after %d digits: %+v", i+1, res)
		}
		if res.Entered != i+1 {
			t.Fatalf("Entered = %d, want %d", res.Entered, i+1)
		}
	}

	res, err := m.SubmitCodeDigit(ctx, 1, "5")
	if err != nil {
		t.Fatalf("final digit error: %v", err)
	}
	if !res.Authenticated {
		t.Fatalf("not authenticated after full code: %+v", res)
	}
	if res.Identity.ID != 77 {
		t.Fatalf("identity = %+v", res.Identity)
	}
	if client.gotCode != "12345" {
		t.Fatalf("code submitted = %q, want 12345", client.gotCode)
	}
	if !m.HasCredentials(1) {
		t.Fatal("session not persisted after login")
	}

	// The pending login is gone; stray digits cannot reach it.
	if _, err := m.SubmitCodeDigit(ctx, 1, "6"); !errors.Is(err, ErrNoPendingLogin) {
		t.Fatalf("stray digit: got %v, want ErrNoPendingLogin", err)
	}
}

func TestInvalidDigitRejected(t *testing.T) {
	t.Parallel()
	m := newTestManager(t, &fakeDialer{next: &fakeClient{}})
	ctx := context.Background()
	if err := m.BeginLogin(ctx, 1, "+15551234567"); err != nil {
		t.Fatalf("BeginLogin error: %v", err)
	}
	for _, d := range []string{"", "12", "x", " "} {
		if _, err := m.SubmitCodeDigit(ctx, 1, d); !errors.Is(err, ErrInvalidDigit) {
			t.Fatalf("digit %q: got %v, want ErrInvalidDigit", d, err)
		}
	}
}

func TestCodeRejectedDiscardsPending(t *testing.T) {
	t.Parallel()
	client := &fakeClient{signInErr: platform.ErrCodeInvalid}
	m := newTestManager(t, &fakeDialer{next: client})
	ctx := context.Background()

	if err := m.BeginLogin(ctx, 1, "+15551234567"); err != nil {
		t.Fatalf("BeginLogin error: %v", err)
	}
	for _, d := range []string{"1", "2", "3", "4"} {
		if _, err := m.SubmitCodeDigit(ctx, 1, d); err != nil {
			t.Fatalf("digit error: %v", err)
		}
	}
	if _, err := m.SubmitCodeDigit(ctx, 1, "5"); !errors.Is(err, ErrCodeRejected) {
		t.Fatalf("got %v, want ErrCodeRejected", err)
	}
	if _, err := m.SubmitCodeDigit(ctx, 1, "1"); !errors.Is(err, ErrNoPendingLogin) {
		t.Fatalf("after rejection: got %v, want ErrNoPendingLogin", err)
	}
	if client.disconnectCalls == 0 {
		t.Fatal("rejected client never disconnected")
	}
	if m.HasCredentials(1) {
		t.Fatal("credentials persisted despite rejected code")
	}
}

func TestSecondFactorFlow(t *testing.T) {
	t.Parallel()
	client := &fakeClient{signInErr: platform.ErrSecondFactorRequired, passwordErr: platform.ErrPasswordInvalid}
	m := newTestManager(t, &fakeDialer{next: client})
	ctx := context.Background()

	if err := m.BeginLogin(ctx, 1, "+15551234567"); err != nil {
		t.Fatalf("BeginLogin error: %v", err)
	}
	var res CodeResult
	var err error
	for _, d := range []string{"1", "2", "3", "4", "5"} {
		res, err = m.SubmitCodeDigit(ctx, 1, d)
		if err != nil {
			t.Fatalf("digit error: %v", err)
		}
	}
	if !res.NeedSecondFactor {
		t.Fatalf("expected second factor, got %+v", res)
	}

	// Wrong password keeps the pending login alive.
	if _, err := m.SubmitSecondFactor(ctx, 1, "bad"); !errors.Is(err, ErrWrongSecret) {
		t.Fatalf("got %v, want ErrWrongSecret", err)
	}
	client.passwordErr = nil
	res, err = m.SubmitSecondFactor(ctx, 1, "good")
	if err != nil {
		t.Fatalf("SubmitSecondFactor error: %v", err)
	}
	if !res.Authenticated {
		t.Fatalf("not authenticated: %+v", res)
	}
	if !m.HasCredentials(1) {
		t.Fatal("session not persisted after second factor")
	}
}

func TestFloodWaitPassesThrough(t *testing.T) {
	t.Parallel()
	fw := &platform.FloodWaitError{RetryAfter: 42e9}
	m := newTestManager(t, &fakeDialer{next: &fakeClient{codeErr: fw}})

	err := m.BeginLogin(context.Background(), 1, "+15551234567")
	var got *platform.FloodWaitError
	if !errors.As(err, &got) || got.RetryAfter != fw.RetryAfter {
		t.Fatalf("BeginLogin = %v, want flood wait passthrough", err)
	}
}

func TestLoadRoundTrip(t *testing.T) {
	t.Parallel()
	d := &fakeDialer{next: &fakeClient{}}
	m := newTestManager(t, d)
	ctx := context.Background()

	// No file yet: nil, nil.
	if c, err := m.Load(ctx, 1); c != nil || err != nil {
		t.Fatalf("Load without credentials: got %v, %v", c, err)
	}

	if err := m.BeginLogin(ctx, 1, "+15551234567"); err != nil {
		t.Fatalf("BeginLogin error: %v", err)
	}
	for _, digit := range []string{"1", "2", "3", "4", "5"} {
		if _, err := m.SubmitCodeDigit(ctx, 1, digit); err != nil {
			t.Fatalf("digit error: %v", err)
		}
	}

	d.next = &fakeClient{authorized: true}
	c, err := m.Load(ctx, 1)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if c == nil {
		t.Fatal("Load returned nil after persisted login")
	}
	ok, _ := c.IsAuthorized(ctx)
	if !ok {
		t.Fatal("loaded session not authorized")
	}

	m.Destroy(1)
	if c, err := m.Load(ctx, 1); c != nil || err != nil {
		t.Fatalf("Load after Destroy: got %v, %v", c, err)
	}
}

func TestLoadDiscardsStaleCredentials(t *testing.T) {
	t.Parallel()
	d := &fakeDialer{}
	m := newTestManager(t, d)
	ctx := context.Background()

	if err := os.WriteFile(m.Path(1), []byte("stale"), 0o600); err != nil {
		t.Fatalf("write stale file: %v", err)
	}
	stale := &fakeClient{authorized: false}
	d.next = stale

	c, err := m.Load(ctx, 1)
	if c != nil || err != nil {
		t.Fatalf("Load stale: got %v, %v; want nil, nil", c, err)
	}
	if stale.disconnectCalls == 0 {
		t.Fatal("stale client left connected")
	}
	if m.HasCredentials(1) {
		t.Fatal("stale credential file not discarded")
	}
}
