// Package conversation turns a stream of inbound chat events into completed
// campaign drafts. Each principal owns one in-memory state: a stage tag plus
// the scratch fields that stage needs. State is never persisted; a restart
// sends the user back to the main menu.
//
// The engine also carries the owner-only admin surface (principal roster,
// ban/unban, campaign inspection) and the ban gate that decides who may
// create campaigns at all.
package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mailerbot/internal/media"
	"mailerbot/internal/platform"
	"mailerbot/internal/session"
	"mailerbot/internal/store"
	"mailerbot/internal/transport"
	logx "mailerbot/pkg/logx"
)

const (
	maxTitleRunes = 10
	groupLimit    = 1000
	retentionAge  = 30 * 24 * time.Hour
)

type Config struct {
	// OwnerID is the platform identity allowed to use the admin surface.
	OwnerID int64
	// AdminContact is shown to principals waiting for approval.
	AdminContact string
}

type groupClass int

const (
	classOther groupClass = iota
	classAdmin
)

// state is the per-principal scratch. It is touched only by that principal's
// own event handling path.
type state struct {
	stage  Stage
	client platform.Client
	me     platform.Identity

	groupClass groupClass
	groups     []platform.Group
	selected   map[int64]bool
	title      string
	media      *store.MediaRef
	text       string
	interval   int
	slots      []store.Slot
	picked     map[store.Slot]bool

	menu transport.MessageRef
}

// clearDraft drops everything accumulated after authorization.
func (st *state) clearDraft() {
	st.groupClass = classOther
	st.groups = nil
	st.selected = nil
	st.title = ""
	st.media = nil
	st.text = ""
	st.interval = 0
	st.slots = nil
	st.picked = nil
}

type Engine struct {
	cfg      Config
	adapter  transport.Adapter
	store    store.Store
	sessions *session.Manager
	media    *media.Store
	log      logx.Logger

	mu     sync.Mutex
	states map[int64]*state

	now func() time.Time
}

func NewEngine(cfg Config, adapter transport.Adapter, st store.Store, sessions *session.Manager, md *media.Store, log logx.Logger) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Engine{
		cfg:      cfg,
		adapter:  adapter,
		store:    st,
		sessions: sessions,
		media:    md,
		log:      log,
		states:   make(map[int64]*state),
		now:      time.Now,
	}
}

// HandleUpdate is the single entry point for inbound events. A panic in any
// handler is recovered here so one principal's bad event cannot take down
// the shared handling path; the user gets a generic retryable message.
func (e *Engine) HandleUpdate(ctx context.Context, u transport.Update) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("recovered panic in update handler", logx.Any("panic", r))
			switch {
			case u.Message != nil:
				e.sendText(ctx, u.Message.ChatID, msgSomethingWrong)
			case u.Callback != nil:
				e.sendText(ctx, u.Callback.ChatID, msgSomethingWrong)
			}
		}
	}()

	switch u.Kind {
	case transport.UpdateMessage:
		if u.Message != nil {
			e.handleMessage(ctx, u.Message)
		}
	case transport.UpdateCallback:
		if u.Callback != nil {
			e.handleCallback(ctx, u.Callback)
		}
	}
}

// stateFor returns the principal's state, creating it on first event.
func (e *Engine) stateFor(id int64) *state {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.states[id]
	if !ok {
		st = &state{stage: StageStart}
		e.states[id] = st
	}
	return st
}

// dropState disconnects any live client and forgets the principal's state.
// Used on logout and on administrative account removal.
func (e *Engine) dropState(id int64) {
	e.mu.Lock()
	st, ok := e.states[id]
	delete(e.states, id)
	e.mu.Unlock()
	if ok && st.client != nil {
		_ = st.client.Disconnect()
	}
}

func (e *Engine) isOwner(platformID int64) bool {
	return platformID == e.cfg.OwnerID
}

// ensureActive registers the principal on first contact and reports whether
// they may use the bot. Everyone but the owner starts banned and waits for
// approval; a principal approved once stays approved across re-logins.
func (e *Engine) ensureActive(ctx context.Context, m *transport.Message) (bool, error) {
	err := e.store.SavePrincipal(ctx, store.Principal{
		PlatformID: m.FromID,
		Username:   m.FromUsername,
		FirstName:  m.FirstName,
		LastName:   m.LastName,
		Active:     e.isOwner(m.FromID),
	})
	if err != nil {
		return false, fmt.Errorf("conversation: register principal: %w", err)
	}
	p, err := e.store.Principal(ctx, m.FromID)
	if err != nil {
		return false, err
	}
	if p == nil {
		return false, fmt.Errorf("conversation: principal %d vanished after save", m.FromID)
	}
	return p.Active, nil
}

// activeNow re-checks the ban flag for an already-registered principal.
func (e *Engine) activeNow(ctx context.Context, platformID int64) bool {
	p, err := e.store.Principal(ctx, platformID)
	if err != nil {
		e.log.Warn("ban check failed", logx.Int64("principal", platformID), logx.Err(err))
		return false
	}
	return p != nil && p.Active
}

func (e *Engine) sendText(ctx context.Context, chatID int64, text string) {
	_, err := e.adapter.SendText(ctx, transport.ChatTarget{ChatID: chatID}, text, htmlOpts(nil))
	if err != nil {
		e.log.Warn("send failed", logx.Int64("chat", chatID), logx.Err(err))
	}
}

func (e *Engine) sendMenu(ctx context.Context, st *state, chatID int64, text string, markup any) {
	ref, err := e.adapter.SendText(ctx, transport.ChatTarget{ChatID: chatID}, text, htmlOpts(markup))
	if err != nil {
		e.log.Warn("send failed", logx.Int64("chat", chatID), logx.Err(err))
		return
	}
	st.menu = ref
}

func (e *Engine) editMenu(ctx context.Context, st *state, chatID int64, text string, markup any) {
	if st.menu.ChatID != 0 {
		if err := e.adapter.EditText(ctx, st.menu, text, htmlOpts(markup)); err == nil {
			return
		}
	}
	e.sendMenu(ctx, st, chatID, text, markup)
}

func htmlOpts(markup any) *transport.SendOptions {
	return &transport.SendOptions{
		ParseMode:          "HTML",
		DisablePreview:     true,
		ReplyMarkupAdapter: markup,
	}
}
