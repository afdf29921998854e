// Package platform abstracts the remote messaging platform that campaigns are
// delivered through. Principals authenticate their own accounts against it
// (multi-step phone/code/password login), and the dispatcher sends through
// their connected clients.
//
// The concrete MTProto implementation is supplied at wiring time; everything
// in this repo programs against Dialer/Client so the login protocol, the
// conversation engine and the dispatcher can be exercised with fakes.
package platform

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// CodeLength is the fixed length of the platform's login confirmation code.
const CodeLength = 5

var (
	ErrInvalidPhone         = errors.New("platform: invalid phone number")
	ErrCodeInvalid          = errors.New("platform: confirmation code rejected")
	ErrSecondFactorRequired = errors.New("platform: second factor required")
	ErrPasswordInvalid      = errors.New("platform: second factor rejected")
	ErrNotAuthorized        = errors.New("platform: not authorized")
)

// FloodWaitError is the platform's rate-limit response. RetryAfter is the
// mandatory wait it dictates; callers surface it verbatim and never retry
// silently.
type FloodWaitError struct {
	RetryAfter time.Duration
}

func (e *FloodWaitError) Error() string {
	return fmt.Sprintf("platform: rate limited, retry after %s", e.RetryAfter)
}

// Identity describes the authenticated account behind a client.
type Identity struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// Group is one group the principal is a member of.
type Group struct {
	ID    int64
	Title string
}

// Role is the principal's standing inside a group.
type Role int

const (
	RoleMember Role = iota
	RoleAdmin
	RoleCreator
)

// Elevated reports whether the role carries admin powers.
func (r Role) Elevated() bool { return r == RoleAdmin || r == RoleCreator }

// Client is one account-scoped connection. Credentials live in the session
// file the client was dialed with; SaveSession flushes them after login.
type Client interface {
	Connect(ctx context.Context) error
	Disconnect() error
	IsAuthorized(ctx context.Context) (bool, error)

	// RequestCode starts the login challenge for phone and returns an opaque
	// challenge token that must accompany SignIn.
	RequestCode(ctx context.Context, phone string) (challenge string, err error)

	// SignIn submits the full confirmation code. It returns
	// ErrSecondFactorRequired when a password step is still needed.
	SignIn(ctx context.Context, phone, code, challenge string) (Identity, error)
	SignInWithPassword(ctx context.Context, password string) (Identity, error)

	// SaveSession durably writes the credential blob to the session file.
	SaveSession() error

	Me(ctx context.Context) (Identity, error)

	// Groups lists the account's supergroup memberships, capped at limit.
	Groups(ctx context.Context, limit int) ([]Group, error)
	ParticipantRole(ctx context.Context, groupID, userID int64) (Role, error)
	ResolveGroup(ctx context.Context, groupID int64) (Group, error)

	SendMessage(ctx context.Context, groupID int64, text string) error
	// SendFile sends a local file with caption; streaming hints video playback.
	SendFile(ctx context.Context, groupID int64, path, caption string, streaming bool) error
}

// Dialer opens clients bound to a session credential file.
type Dialer interface {
	Dial(ctx context.Context, sessionPath string) (Client, error)
}
