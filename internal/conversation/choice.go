package conversation

import (
	"context"
	"fmt"

	"mailerbot/internal/store"
	"mailerbot/internal/transport"
	logx "mailerbot/pkg/logx"
)

// handleCallback drives the discrete-choice half of the state machine.
// Callback data is decoded into a typed action once, then matched against
// the current stage; actions that do not fit the stage are acknowledged
// with a hint and change nothing. Stale buttons from old menus land here
// all the time, so the mismatch path is quiet.
func (e *Engine) handleCallback(ctx context.Context, cb *transport.Callback) {
	st := e.stateFor(cb.FromID)
	st.menu = transport.MessageRef{ChatID: cb.ChatID, MessageID: cb.MessageID}
	act := DecodeAction(cb.Data)

	switch act.Kind {
	case ActionNoop:
		e.ack(ctx, cb.ID, "")

	case ActionCreate:
		if st.stage != StageAuthorized {
			e.ack(ctx, cb.ID, msgNotAllowed)
			return
		}
		if !e.activeNow(ctx, cb.FromID) {
			e.ack(ctx, cb.ID, msgNotAllowed)
			return
		}
		e.ack(ctx, cb.ID, "")
		e.discardDraftMedia(st)
		st.clearDraft()
		st.stage = StageChoosingGroupType
		e.editMenu(ctx, st, cb.ChatID, msgGroupType, groupTypeMenu())

	case ActionCampaigns:
		if st.stage != StageAuthorized {
			e.ack(ctx, cb.ID, msgNotAllowed)
			return
		}
		e.ack(ctx, cb.ID, "")
		e.showCampaigns(ctx, st, cb.ChatID, cb.FromID)

	case ActionPrincipals:
		if !e.isOwner(cb.FromID) || st.stage != StageAuthorized {
			e.ack(ctx, cb.ID, msgNotAllowed)
			return
		}
		e.ack(ctx, cb.ID, "")
		e.showRoster(ctx, st, cb.ChatID)

	case ActionBack:
		e.ack(ctx, cb.ID, "")
		e.handleBack(ctx, st, cb)

	case ActionGroupsAdmin, ActionGroupsOther:
		if st.stage != StageChoosingGroupType {
			e.ack(ctx, cb.ID, msgNotAllowed)
			return
		}
		e.ack(ctx, cb.ID, "")
		class := classOther
		if act.Kind == ActionGroupsAdmin {
			class = classAdmin
		}
		e.startGroupSelection(ctx, st, cb.ChatID, class)

	case ActionToggleGroup:
		if st.stage != StageChoosingGroups {
			e.ack(ctx, cb.ID, msgNotAllowed)
			return
		}
		if _, known := st.selected[act.ID]; !known {
			e.ack(ctx, cb.ID, msgNotAllowed)
			return
		}
		e.ack(ctx, cb.ID, "")
		st.selected[act.ID] = !st.selected[act.ID]
		e.editMenu(ctx, st, cb.ChatID, msgPickGroups, groupsMarkup(st))

	case ActionGroupsDone:
		if st.stage != StageChoosingGroups {
			e.ack(ctx, cb.ID, msgNotAllowed)
			return
		}
		if countSelected(st.selected) == 0 {
			e.ack(ctx, cb.ID, msgNeedOneGroup)
			return
		}
		e.ack(ctx, cb.ID, "")
		st.stage = StageEnteringTitle
		e.sendText(ctx, cb.ChatID, msgAskTitle)

	case ActionSkipMedia:
		if st.stage != StageWaitingMedia {
			e.ack(ctx, cb.ID, msgNotAllowed)
			return
		}
		e.ack(ctx, cb.ID, "")
		st.media = nil
		st.stage = StageEnteringText
		e.sendText(ctx, cb.ChatID, msgAskText)

	case ActionInterval:
		if st.stage != StageChoosingInterval {
			e.ack(ctx, cb.ID, msgNotAllowed)
			return
		}
		e.ack(ctx, cb.ID, "")
		e.enterTimes(ctx, st, cb.ChatID, act.Minutes)

	case ActionIntervalCustom:
		if st.stage != StageChoosingInterval {
			e.ack(ctx, cb.ID, msgNotAllowed)
			return
		}
		e.ack(ctx, cb.ID, "")
		st.stage = StageWaitingCustomInterval
		e.sendText(ctx, cb.ChatID, msgAskCustom)

	case ActionToggleSlot:
		if st.stage != StageChoosingTimes {
			e.ack(ctx, cb.ID, msgNotAllowed)
			return
		}
		if _, known := st.picked[act.Slot]; !known {
			e.ack(ctx, cb.ID, msgNotAllowed)
			return
		}
		e.ack(ctx, cb.ID, "")
		st.picked[act.Slot] = !st.picked[act.Slot]
		e.editMenu(ctx, st, cb.ChatID, msgPickTimes, timesMarkup(st))

	case ActionSaveTimes:
		if st.stage != StageChoosingTimes {
			e.ack(ctx, cb.ID, msgNotAllowed)
			return
		}
		if countPicked(st.picked) == 0 {
			e.ack(ctx, cb.ID, msgNeedOneSlot)
			return
		}
		e.ack(ctx, cb.ID, "")
		st.stage = StageConfirming
		e.editMenu(ctx, st, cb.ChatID, confirmText(st), confirmMarkup())

	case ActionConfirm:
		if st.stage != StageConfirming {
			e.ack(ctx, cb.ID, msgNotAllowed)
			return
		}
		e.ack(ctx, cb.ID, "")
		e.commitDraft(ctx, st, cb.ChatID, cb.FromID)

	case ActionCampaignView:
		if st.stage != StageAuthorized {
			e.ack(ctx, cb.ID, msgNotAllowed)
			return
		}
		e.ack(ctx, cb.ID, "")
		e.showCampaignDetail(ctx, st, cb.ChatID, cb.FromID, act.ID)

	case ActionCampaignDelete:
		if st.stage != StageAuthorized {
			e.ack(ctx, cb.ID, msgNotAllowed)
			return
		}
		e.ack(ctx, cb.ID, msgDeleted)
		e.deleteCampaign(ctx, st, cb.ChatID, cb.FromID, act.ID)

	case ActionBan, ActionUnban:
		if !e.isOwner(cb.FromID) {
			e.ack(ctx, cb.ID, msgNotAllowed)
			return
		}
		e.ack(ctx, cb.ID, "")
		e.setBanned(ctx, st, cb.ChatID, act.ID, act.Kind == ActionBan)

	case ActionPrincipalDelete:
		if !e.isOwner(cb.FromID) {
			e.ack(ctx, cb.ID, msgNotAllowed)
			return
		}
		e.ack(ctx, cb.ID, msgDeleted)
		e.removePrincipal(ctx, st, cb.ChatID, act.ID)

	default:
		e.ack(ctx, cb.ID, msgNotAllowed)
	}
}

// handleBack walks one screen backwards. Free-text stages have no Back
// button, so only menu stages appear here.
func (e *Engine) handleBack(ctx context.Context, st *state, cb *transport.Callback) {
	switch st.stage {
	case StageChoosingGroups:
		st.stage = StageChoosingGroupType
		e.editMenu(ctx, st, cb.ChatID, msgGroupType, groupTypeMenu())
	case StageChoosingGroupType, StageChoosingInterval:
		e.discardDraftMedia(st)
		st.clearDraft()
		st.stage = StageAuthorized
		e.editMenu(ctx, st, cb.ChatID, msgMainMenu, mainMenu(e.isOwner(cb.FromID)))
	case StageChoosingTimes:
		st.stage = StageChoosingInterval
		e.editMenu(ctx, st, cb.ChatID, msgAskInterval, intervalMenu())
	case StageConfirming:
		st.stage = StageChoosingTimes
		e.editMenu(ctx, st, cb.ChatID, msgPickTimes, timesMarkup(st))
	case StageAuthorized:
		e.editMenu(ctx, st, cb.ChatID, msgMainMenu, mainMenu(e.isOwner(cb.FromID)))
	}
}

// commitDraft writes the accumulated draft in one transaction. On failure
// the draft stays intact so Confirm can simply be pressed again.
func (e *Engine) commitDraft(ctx context.Context, st *state, chatID, ownerID int64) {
	names, ids := st.selectedGroups()
	slots := make([]store.Slot, 0, len(st.slots))
	for _, sl := range st.slots {
		if st.picked[sl] {
			slots = append(slots, sl)
		}
	}

	name := st.title
	if name == "" {
		name = fmt.Sprintf("campaign-%d", e.now().Unix())
	}

	c := &store.Campaign{
		OwnerID:         ownerID,
		Name:            name,
		GroupNames:      names,
		GroupIDs:        ids,
		Message:         st.text,
		Media:           st.media,
		IntervalMinutes: st.interval,
	}
	id, err := e.store.CreateCampaign(ctx, c, slots)
	if err != nil {
		e.log.Error("campaign save failed", logx.Int64("owner", ownerID), logx.Err(err))
		e.sendText(ctx, chatID, msgSaveFailed)
		return
	}

	e.log.Info("campaign created",
		logx.Int64("campaign", id),
		logx.Int64("owner", ownerID),
		logx.Int("groups", len(ids)),
		logx.Int("slots", len(slots)))
	st.clearDraft()
	st.stage = StageAuthorized
	e.sendText(ctx, chatID, msgSaved)
	e.sendMenu(ctx, st, chatID, msgMainMenu, mainMenu(e.isOwner(ownerID)))
}

func (e *Engine) discardDraftMedia(st *state) {
	if st.media != nil {
		e.media.Remove(st.media.Path)
		st.media = nil
	}
}

func (e *Engine) ack(ctx context.Context, callbackID, text string) {
	if err := e.adapter.AnswerCallback(ctx, callbackID, text); err != nil {
		e.log.Debug("callback answer failed", logx.Err(err))
	}
}
