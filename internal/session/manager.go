// Package session owns the per-principal login protocol and the persisted
// platform credentials. At most one valid session exists per principal:
// loading yields either a connected, authorized client or nothing.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"mailerbot/internal/platform"
	logx "mailerbot/pkg/logx"
)

var (
	ErrPhoneFormat    = errors.New("session: phone number must look like +XXXXXXXXXXX")
	ErrInvalidDigit   = errors.New("session: expected a single digit")
	ErrNoPendingLogin = errors.New("session: no login in progress")
	ErrCodeRejected   = errors.New("session: confirmation code rejected")
	ErrWrongSecret    = errors.New("session: second factor rejected")
)

var phoneRe = regexp.MustCompile(`^\+\d{11,12}$`)

// CodeResult reports the outcome of one submitted code digit.
type CodeResult struct {
	// Entered is how many digits have been accumulated so far. When it is
	// below platform.CodeLength nothing else is set: the caller prompts for
	// the next digit.
	Entered          int
	Authenticated    bool
	NeedSecondFactor bool
	Identity         platform.Identity
	// Client is the connected, authorized client; set only when
	// Authenticated is true. Ownership transfers to the caller.
	Client platform.Client
}

type pendingLogin struct {
	client    platform.Client
	phone     string
	challenge string
	code      string
}

// Manager runs the multi-step login protocol and keeps one credential blob
// per principal under dir. Pending logins are in-memory only; they vanish on
// restart, which just forces the user back to phone entry.
type Manager struct {
	dir    string
	dialer platform.Dialer
	log    logx.Logger

	mu      sync.Mutex
	pending map[int64]*pendingLogin
}

func NewManager(dir string, dialer platform.Dialer, log logx.Logger) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("session: create dir: %w", err)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Manager{
		dir:     dir,
		dialer:  dialer,
		log:     log,
		pending: make(map[int64]*pendingLogin),
	}, nil
}

// Path returns the credential file location for a principal.
func (m *Manager) Path(principalID int64) string {
	return filepath.Join(m.dir, fmt.Sprintf("user_%d.session", principalID))
}

// HasCredentials reports whether a credential blob exists on disk. It says
// nothing about whether the blob still verifies; use Load for that.
func (m *Manager) HasCredentials(principalID int64) bool {
	_, err := os.Stat(m.Path(principalID))
	return err == nil
}

// BeginLogin validates the phone number and starts the platform's login
// challenge. A *platform.FloodWaitError passes through verbatim so the
// caller can surface the mandatory wait; it is never retried here.
func (m *Manager) BeginLogin(ctx context.Context, principalID int64, phone string) error {
	if !phoneRe.MatchString(phone) {
		return ErrPhoneFormat
	}

	// A fresh login supersedes any half-finished one.
	m.discardPending(principalID)

	client, err := m.dialer.Dial(ctx, m.Path(principalID))
	if err != nil {
		return fmt.Errorf("session: dial: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		_ = client.Disconnect()
		return fmt.Errorf("session: connect: %w", err)
	}
	challenge, err := client.RequestCode(ctx, phone)
	if err != nil {
		_ = client.Disconnect()
		var fw *platform.FloodWaitError
		if errors.As(err, &fw) {
			return fw
		}
		if errors.Is(err, platform.ErrInvalidPhone) {
			return ErrPhoneFormat
		}
		return fmt.Errorf("session: request code: %w", err)
	}

	m.mu.Lock()
	m.pending[principalID] = &pendingLogin{client: client, phone: phone, challenge: challenge}
	m.mu.Unlock()
	return nil
}

// SubmitCodeDigit appends one digit to the pending code. Digits arrive one
// per event (submitting the whole code at once trips the platform's
// interception heuristic). Sign-in is attempted exactly when the code
// reaches platform.CodeLength; a rejected code discards the pending login
// so the caller restarts from phone entry.
func (m *Manager) SubmitCodeDigit(ctx context.Context, principalID int64, digit string) (CodeResult, error) {
	if len(digit) != 1 || digit[0] < '0' || digit[0] > '9' {
		return CodeResult{}, ErrInvalidDigit
	}

	m.mu.Lock()
	p, ok := m.pending[principalID]
	if !ok {
		m.mu.Unlock()
		return CodeResult{}, ErrNoPendingLogin
	}
	p.code += digit
	code := p.code
	m.mu.Unlock()

	if len(code) < platform.CodeLength {
		return CodeResult{Entered: len(code)}, nil
	}

	identity, err := p.client.SignIn(ctx, p.phone, code, p.challenge)
	switch {
	case err == nil:
		if err := m.persist(principalID, p.client); err != nil {
			m.discardPending(principalID)
			return CodeResult{}, err
		}
		m.forgetPending(principalID)
		return CodeResult{Entered: len(code), Authenticated: true, Identity: identity, Client: p.client}, nil

	case errors.Is(err, platform.ErrSecondFactorRequired):
		// Keep the pending login; the caller must supply the password next.
		return CodeResult{Entered: len(code), NeedSecondFactor: true}, nil

	case errors.Is(err, platform.ErrCodeInvalid):
		m.discardPending(principalID)
		return CodeResult{}, ErrCodeRejected

	default:
		m.discardPending(principalID)
		return CodeResult{}, fmt.Errorf("session: sign-in: %w", err)
	}
}

// SubmitSecondFactor completes a login that required a password. The pending
// login is retained on a wrong secret so the user may try again.
func (m *Manager) SubmitSecondFactor(ctx context.Context, principalID int64, secret string) (CodeResult, error) {
	m.mu.Lock()
	p, ok := m.pending[principalID]
	m.mu.Unlock()
	if !ok {
		return CodeResult{}, ErrNoPendingLogin
	}

	identity, err := p.client.SignInWithPassword(ctx, secret)
	if err != nil {
		if errors.Is(err, platform.ErrPasswordInvalid) {
			return CodeResult{}, ErrWrongSecret
		}
		m.discardPending(principalID)
		return CodeResult{}, fmt.Errorf("session: second factor: %w", err)
	}
	if err := m.persist(principalID, p.client); err != nil {
		m.discardPending(principalID)
		return CodeResult{}, err
	}
	m.forgetPending(principalID)
	return CodeResult{Authenticated: true, Identity: identity, Client: p.client}, nil
}

// Load opens the persisted session for a principal and verifies it.
// It returns (nil, nil) when no credentials exist or when they no longer
// verify; in the latter case the stale credential file is discarded so the
// next login starts clean. A connected-but-unauthorized client is never
// returned.
func (m *Manager) Load(ctx context.Context, principalID int64) (platform.Client, error) {
	path := m.Path(principalID)
	if _, err := os.Stat(path); err != nil {
		return nil, nil
	}

	client, err := m.dialer.Dial(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("session: dial: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		_ = client.Disconnect()
		return nil, fmt.Errorf("session: connect: %w", err)
	}
	ok, err := client.IsAuthorized(ctx)
	if err != nil {
		_ = client.Disconnect()
		return nil, fmt.Errorf("session: authorization check: %w", err)
	}
	if !ok {
		_ = client.Disconnect()
		if err := os.Remove(path); err != nil {
			m.log.Warn("failed removing stale session file", logx.Int64("principal", principalID), logx.Err(err))
		} else {
			m.log.Info("stale session discarded", logx.Int64("principal", principalID))
		}
		return nil, nil
	}
	return client, nil
}

// Destroy drops any pending login and deletes the durable credential.
func (m *Manager) Destroy(principalID int64) {
	m.discardPending(principalID)
	path := m.Path(principalID)
	if err := os.Remove(path); err != nil {
		if !os.IsNotExist(err) {
			m.log.Warn("failed removing session file", logx.Int64("principal", principalID), logx.Err(err))
		}
		return
	}
	m.log.Info("session destroyed", logx.Int64("principal", principalID))
}

// persist flushes the client's credential blob to disk. Called exactly once
// per successful login.
func (m *Manager) persist(principalID int64, client platform.Client) error {
	if err := client.SaveSession(); err != nil {
		return fmt.Errorf("session: persist: %w", err)
	}
	m.log.Info("session persisted", logx.Int64("principal", principalID))
	return nil
}

// discardPending disconnects and forgets a pending login, if any.
func (m *Manager) discardPending(principalID int64) {
	m.mu.Lock()
	p, ok := m.pending[principalID]
	delete(m.pending, principalID)
	m.mu.Unlock()
	if ok && p.client != nil {
		_ = p.client.Disconnect()
	}
}

// forgetPending removes the map entry without disconnecting (ownership of
// the client has moved to the caller).
func (m *Manager) forgetPending(principalID int64) {
	m.mu.Lock()
	delete(m.pending, principalID)
	m.mu.Unlock()
}
