package conversation

import (
	"context"
	"errors"

	"mailerbot/internal/store"
	logx "mailerbot/pkg/logx"
)

// showCampaigns lists the principal's campaigns. Listing doubles as the
// lazy retention sweep: campaigns past the retention age are deleted (media
// included) before anything is rendered.
func (e *Engine) showCampaigns(ctx context.Context, st *state, chatID, ownerID int64) {
	campaigns, err := e.store.ListCampaigns(ctx, ownerID)
	if err != nil {
		e.log.Warn("campaign listing failed", logx.Int64("owner", ownerID), logx.Err(err))
		e.sendText(ctx, chatID, msgSomethingWrong)
		return
	}
	campaigns = e.sweepStale(ctx, ownerID, campaigns)
	if len(campaigns) == 0 {
		e.editMenu(ctx, st, chatID, msgNoCampaigns, mainMenu(e.isOwner(ownerID)))
		return
	}
	e.editMenu(ctx, st, chatID, "Your campaigns:", campaignsMarkup(campaigns))
}

// sweepStale drops campaigns older than the retention age and returns the
// survivors. Deletion failures are logged and the campaign stays listed; the
// next view retries naturally.
func (e *Engine) sweepStale(ctx context.Context, ownerID int64, campaigns []store.Campaign) []store.Campaign {
	cutoff := e.now().Add(-retentionAge)
	kept := campaigns[:0]
	for _, c := range campaigns {
		if c.CreatedAt.IsZero() || c.CreatedAt.After(cutoff) {
			kept = append(kept, c)
			continue
		}
		if err := e.store.DeleteCampaign(ctx, c.ID, ownerID); err != nil {
			e.log.Warn("retention sweep delete failed", logx.Int64("campaign", c.ID), logx.Err(err))
			kept = append(kept, c)
			continue
		}
		if c.Media != nil {
			e.media.Remove(c.Media.Path)
		}
		e.log.Info("stale campaign swept",
			logx.Int64("campaign", c.ID),
			logx.Int64("owner", ownerID),
			logx.Time("created", c.CreatedAt))
	}
	return kept
}

func (e *Engine) showCampaignDetail(ctx context.Context, st *state, chatID, ownerID, campaignID int64) {
	c, err := e.store.Campaign(ctx, campaignID, ownerID)
	if err != nil {
		e.log.Warn("campaign lookup failed", logx.Int64("campaign", campaignID), logx.Err(err))
		e.showCampaigns(ctx, st, chatID, ownerID)
		return
	}
	slots, err := e.store.CampaignSlots(ctx, campaignID)
	if err != nil {
		e.log.Warn("slot lookup failed", logx.Int64("campaign", campaignID), logx.Err(err))
		e.sendText(ctx, chatID, msgSomethingWrong)
		return
	}
	e.editMenu(ctx, st, chatID, campaignDetailText(c, slots), campaignDetailMarkup(c.ID))
}

// deleteCampaign removes the campaign, its slots (cascading) and its media
// file, then re-renders the list.
func (e *Engine) deleteCampaign(ctx context.Context, st *state, chatID, ownerID, campaignID int64) {
	c, err := e.store.Campaign(ctx, campaignID, ownerID)
	if err != nil {
		e.log.Warn("campaign lookup failed", logx.Int64("campaign", campaignID), logx.Err(err))
		e.showCampaigns(ctx, st, chatID, ownerID)
		return
	}
	if err := e.store.DeleteCampaign(ctx, campaignID, ownerID); err != nil {
		e.log.Warn("campaign delete failed", logx.Int64("campaign", campaignID), logx.Err(err))
		e.sendText(ctx, chatID, msgSomethingWrong)
		return
	}
	if c.Media != nil {
		e.media.Remove(c.Media.Path)
	}
	e.log.Info("campaign deleted", logx.Int64("campaign", campaignID), logx.Int64("owner", ownerID))
	e.showCampaigns(ctx, st, chatID, ownerID)
}

// showRoster renders the principal roster with ban toggles. Callers have
// already passed the owner check.
func (e *Engine) showRoster(ctx context.Context, st *state, chatID int64) {
	principals, err := e.store.ListPrincipals(ctx)
	if err != nil {
		e.log.Warn("roster listing failed", logx.Err(err))
		e.sendText(ctx, chatID, msgSomethingWrong)
		return
	}
	if len(principals) == 0 {
		e.editMenu(ctx, st, chatID, "No principals yet.", mainMenu(true))
		return
	}
	e.editMenu(ctx, st, chatID, "Principals:", rosterMarkup(principals))
}

// setBanned flips the active flag by internal id. Bans do not cancel already
// stored campaigns; they only stop new ones from being created.
func (e *Engine) setBanned(ctx context.Context, st *state, chatID, principalID int64, banned bool) {
	p, err := e.findPrincipal(ctx, principalID)
	if err != nil || p == nil {
		e.showRoster(ctx, st, chatID)
		return
	}
	if err := e.store.SetActive(ctx, p.PlatformID, !banned); err != nil {
		e.log.Warn("ban toggle failed", logx.Int64("principal", principalID), logx.Err(err))
		e.sendText(ctx, chatID, msgSomethingWrong)
		return
	}
	e.log.Info("ban flag changed",
		logx.Int64("principal", p.PlatformID),
		logx.Bool("banned", banned))
	e.showRoster(ctx, st, chatID)
}

// removePrincipal hard-deletes the account: the row, the persisted session
// and the in-memory conversation state all go together.
func (e *Engine) removePrincipal(ctx context.Context, st *state, chatID, principalID int64) {
	p, err := e.store.DeletePrincipal(ctx, principalID)
	if errors.Is(err, store.ErrNotFound) {
		e.showRoster(ctx, st, chatID)
		return
	}
	if err != nil {
		e.log.Warn("principal delete failed", logx.Int64("principal", principalID), logx.Err(err))
		e.sendText(ctx, chatID, msgSomethingWrong)
		return
	}
	if p != nil {
		e.dropState(p.PlatformID)
		e.sessions.Destroy(p.PlatformID)
		e.log.Info("principal removed", logx.Int64("principal", p.PlatformID))
	}
	e.showRoster(ctx, st, chatID)
}

// findPrincipal resolves an internal row id against the roster. The store
// keys lookups by platform id, so this walks the list.
func (e *Engine) findPrincipal(ctx context.Context, id int64) (*store.Principal, error) {
	principals, err := e.store.ListPrincipals(ctx)
	if err != nil {
		return nil, err
	}
	for i := range principals {
		if principals[i].ID == id {
			return &principals[i], nil
		}
	}
	return nil, nil
}
