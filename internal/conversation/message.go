package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"mailerbot/internal/platform"
	"mailerbot/internal/session"
	"mailerbot/internal/store"
	"mailerbot/internal/transport"
	logx "mailerbot/pkg/logx"
)

// handleMessage drives the free-text half of the state machine. Each stage
// accepts only its own inputs; everything else re-prompts without moving.
func (e *Engine) handleMessage(ctx context.Context, m *transport.Message) {
	st := e.stateFor(m.FromID)
	text := strings.TrimSpace(m.Text)

	switch text {
	case "/start":
		e.handleStart(ctx, st, m)
		return
	case "/logout":
		e.handleLogout(ctx, m)
		return
	}

	switch st.stage {
	case StageWaitingPhone:
		e.handlePhone(ctx, st, m.ChatID, m.FromID, text)
	case StageWaitingCode:
		e.handleDigit(ctx, st, m.ChatID, m.FromID, text)
	case StageWaitingSecondFactor:
		e.handleSecondFactor(ctx, st, m.ChatID, m.FromID, text)
	case StageEnteringTitle:
		e.handleTitle(ctx, st, m.ChatID, text)
	case StageWaitingMedia:
		e.handleMedia(ctx, st, m)
	case StageEnteringText:
		e.handleBody(ctx, st, m.ChatID, m.Text)
	case StageWaitingCustomInterval:
		e.handleCustomInterval(ctx, st, m.ChatID, text)
	case StageStart:
		e.sendText(ctx, m.ChatID, "Send /start to begin.")
	default:
		e.sendText(ctx, m.ChatID, msgUseButtons)
	}
}

// handleStart registers the principal, applies the ban gate and either
// restores a persisted session or begins a fresh login.
func (e *Engine) handleStart(ctx context.Context, st *state, m *transport.Message) {
	active, err := e.ensureActive(ctx, m)
	if err != nil {
		e.log.Error("registration failed", logx.Int64("principal", m.FromID), logx.Err(err))
		e.sendText(ctx, m.ChatID, msgSomethingWrong)
		return
	}
	if !active {
		e.sendText(ctx, m.ChatID, pendingApprovalText(e.cfg.AdminContact))
		return
	}

	if st.client != nil {
		st.clearDraft()
		st.stage = StageAuthorized
		e.sendMenu(ctx, st, m.ChatID, msgMainMenu, mainMenu(e.isOwner(m.FromID)))
		return
	}

	client, err := e.sessions.Load(ctx, m.FromID)
	if err != nil {
		e.log.Warn("session load failed", logx.Int64("principal", m.FromID), logx.Err(err))
		e.sendText(ctx, m.ChatID, msgSomethingWrong)
		return
	}
	if client == nil {
		st.stage = StageWaitingPhone
		e.sendText(ctx, m.ChatID, msgAskPhone)
		return
	}

	me, err := client.Me(ctx)
	if err != nil {
		_ = client.Disconnect()
		e.log.Warn("identity lookup failed", logx.Int64("principal", m.FromID), logx.Err(err))
		st.stage = StageWaitingPhone
		e.sendText(ctx, m.ChatID, msgAskPhone)
		return
	}
	st.client = client
	st.me = me
	st.clearDraft()
	st.stage = StageAuthorized
	e.sendMenu(ctx, st, m.ChatID, msgMainMenu, mainMenu(e.isOwner(m.FromID)))
}

func (e *Engine) handleLogout(ctx context.Context, m *transport.Message) {
	e.dropState(m.FromID)
	e.sessions.Destroy(m.FromID)
	e.sendText(ctx, m.ChatID, msgLoggedOut)
}

func (e *Engine) handlePhone(ctx context.Context, st *state, chatID, principalID int64, phone string) {
	err := e.sessions.BeginLogin(ctx, principalID, phone)
	switch {
	case err == nil:
		st.stage = StageWaitingCode
		e.sendText(ctx, chatID, msgAskDigit)
	case errors.Is(err, session.ErrPhoneFormat):
		e.sendText(ctx, chatID, msgBadPhone)
	default:
		var fw *platform.FloodWaitError
		if errors.As(err, &fw) {
			e.sendText(ctx, chatID, fmt.Sprintf("Too many attempts. Wait %s and try again.", fw.RetryAfter))
			return
		}
		e.log.Warn("login start failed", logx.Int64("principal", principalID), logx.Err(err))
		e.sendText(ctx, chatID, msgSomethingWrong)
	}
}

func (e *Engine) handleDigit(ctx context.Context, st *state, chatID, principalID int64, digit string) {
	res, err := e.sessions.SubmitCodeDigit(ctx, principalID, digit)
	switch {
	case err == nil:
		switch {
		case res.Authenticated:
			e.finishLogin(ctx, st, chatID, principalID, res)
		case res.NeedSecondFactor:
			st.stage = StageWaitingSecondFactor
			e.sendText(ctx, chatID, msgAskPassword)
		default:
			e.sendText(ctx, chatID, msgNextDigit)
		}
	case errors.Is(err, session.ErrInvalidDigit):
		e.sendText(ctx, chatID, msgBadDigit)
	case errors.Is(err, session.ErrCodeRejected):
		st.stage = StageWaitingPhone
		e.sendText(ctx, chatID, msgCodeRejected)
	case errors.Is(err, session.ErrNoPendingLogin):
		st.stage = StageWaitingPhone
		e.sendText(ctx, chatID, msgAskPhone)
	default:
		e.log.Warn("sign-in failed", logx.Int64("principal", principalID), logx.Err(err))
		st.stage = StageWaitingPhone
		e.sendText(ctx, chatID, msgSomethingWrong+" "+msgAskPhone)
	}
}

func (e *Engine) handleSecondFactor(ctx context.Context, st *state, chatID, principalID int64, secret string) {
	res, err := e.sessions.SubmitSecondFactor(ctx, principalID, secret)
	switch {
	case err == nil:
		e.finishLogin(ctx, st, chatID, principalID, res)
	case errors.Is(err, session.ErrWrongSecret):
		e.sendText(ctx, chatID, msgWrongPassword)
	case errors.Is(err, session.ErrNoPendingLogin):
		st.stage = StageWaitingPhone
		e.sendText(ctx, chatID, msgAskPhone)
	default:
		e.log.Warn("second factor failed", logx.Int64("principal", principalID), logx.Err(err))
		st.stage = StageWaitingPhone
		e.sendText(ctx, chatID, msgSomethingWrong+" "+msgAskPhone)
	}
}

func (e *Engine) finishLogin(ctx context.Context, st *state, chatID, principalID int64, res session.CodeResult) {
	st.client = res.Client
	st.me = res.Identity
	st.clearDraft()
	st.stage = StageAuthorized
	e.log.Info("principal logged in", logx.Int64("principal", principalID))
	e.sendText(ctx, chatID, msgLoggedIn)
	e.sendMenu(ctx, st, chatID, msgMainMenu, mainMenu(e.isOwner(principalID)))
}

// handleTitle caps the name at maxTitleRunes. A blank title is allowed and
// gets a generated name at commit time.
func (e *Engine) handleTitle(ctx context.Context, st *state, chatID int64, title string) {
	if len([]rune(title)) > maxTitleRunes {
		e.sendText(ctx, chatID, msgTitleTooLong)
		return
	}
	st.title = title
	st.stage = StageWaitingMedia
	e.sendMenu(ctx, st, chatID, msgAskMedia, mediaMenu())
}

// handleMedia accepts exactly one photo or video. The file is copied into
// local storage immediately; only the reference lives in the draft.
func (e *Engine) handleMedia(ctx context.Context, st *state, m *transport.Message) {
	if m.Attachment == nil {
		e.sendText(ctx, m.ChatID, msgMediaOnly)
		return
	}
	var kind store.MediaKind
	switch m.Attachment.Kind {
	case transport.AttachmentPhoto:
		kind = store.MediaPhoto
	case transport.AttachmentVideo:
		kind = store.MediaVideo
	default:
		e.sendText(ctx, m.ChatID, msgMediaOnly)
		return
	}

	path := e.media.NewPath(kind)
	if err := e.adapter.DownloadAttachment(ctx, m.Attachment, path); err != nil {
		e.log.Warn("attachment download failed", logx.Int64("principal", m.FromID), logx.Err(err))
		e.sendText(ctx, m.ChatID, msgSomethingWrong)
		return
	}
	st.media = &store.MediaRef{Path: path, Kind: kind}
	st.stage = StageEnteringText
	e.sendText(ctx, m.ChatID, msgAskText)
}

func (e *Engine) handleBody(ctx context.Context, st *state, chatID int64, body string) {
	if strings.TrimSpace(body) == "" {
		e.sendText(ctx, chatID, msgAskText)
		return
	}
	st.text = body
	st.stage = StageChoosingInterval
	e.sendMenu(ctx, st, chatID, msgAskInterval, intervalMenu())
}

func (e *Engine) handleCustomInterval(ctx context.Context, st *state, chatID int64, text string) {
	n, err := strconv.Atoi(text)
	if err != nil || n <= 0 {
		e.sendText(ctx, chatID, msgBadInterval)
		return
	}
	e.enterTimes(ctx, st, chatID, n)
}

// enterTimes builds the full daily grid at the chosen interval with every
// slot selected; the user only deselects from here.
func (e *Engine) enterTimes(ctx context.Context, st *state, chatID int64, interval int) {
	st.interval = interval
	st.slots = defaultSlots(interval)
	st.picked = make(map[store.Slot]bool, len(st.slots))
	for _, sl := range st.slots {
		st.picked[sl] = true
	}
	st.stage = StageChoosingTimes
	e.sendMenu(ctx, st, chatID, msgPickTimes, timesMarkup(st))
}
