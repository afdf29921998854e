package conversation

import (
	"fmt"
	"strconv"
	"strings"

	"mailerbot/internal/store"
	"mailerbot/pkg/tgui"
)

// ActionKind enumerates every choice token the engine understands. Tokens
// arrive as "action" or "action:payload" callback data and are decoded once
// at the boundary; the state machine matches on the kind, never on raw
// strings.
type ActionKind int

const (
	ActionUnknown ActionKind = iota
	ActionNoop
	ActionCreate
	ActionCampaigns
	ActionPrincipals
	ActionBack
	ActionGroupsAdmin
	ActionGroupsOther
	ActionToggleGroup // ID is a group id
	ActionGroupsDone
	ActionSkipMedia
	ActionInterval // Minutes is a preset
	ActionIntervalCustom
	ActionToggleSlot // Slot is set
	ActionSaveTimes
	ActionConfirm
	ActionCampaignView   // ID is a campaign id
	ActionCampaignDelete // ID is a campaign id
	ActionBan            // ID is an internal principal id
	ActionUnban          // ID is an internal principal id
	ActionPrincipalDelete
)

type Action struct {
	Kind    ActionKind
	ID      int64
	Minutes int
	Slot    store.Slot
}

const (
	dataNoop            = "noop"
	dataCreate          = "create"
	dataCampaigns       = "campaigns"
	dataPrincipals      = "principals"
	dataBack            = "back"
	dataGroupsAdmin     = "groups_admin"
	dataGroupsOther     = "groups_other"
	dataGroup           = "group"
	dataGroupsDone      = "groups_ok"
	dataSkipMedia       = "media_skip"
	dataInterval        = "interval"
	dataIntervalCustom  = "interval_custom"
	dataSlot            = "slot"
	dataSaveTimes       = "save_times"
	dataConfirm         = "confirm"
	dataCampaignView    = "campaign"
	dataCampaignDelete  = "campaign_del"
	dataBan             = "ban"
	dataUnban           = "unban"
	dataPrincipalDelete = "principal_del"
)

// DecodeAction parses callback data into a typed action. Unparseable data
// yields ActionUnknown; the engine answers it with a corrective prompt and
// leaves the stage untouched.
func DecodeAction(data string) Action {
	action, payload := tgui.Split(data)
	switch action {
	case dataNoop:
		return Action{Kind: ActionNoop}
	case dataCreate:
		return Action{Kind: ActionCreate}
	case dataCampaigns:
		return Action{Kind: ActionCampaigns}
	case dataPrincipals:
		return Action{Kind: ActionPrincipals}
	case dataBack:
		return Action{Kind: ActionBack}
	case dataGroupsAdmin:
		return Action{Kind: ActionGroupsAdmin}
	case dataGroupsOther:
		return Action{Kind: ActionGroupsOther}
	case dataGroupsDone:
		return Action{Kind: ActionGroupsDone}
	case dataSkipMedia:
		return Action{Kind: ActionSkipMedia}
	case dataIntervalCustom:
		return Action{Kind: ActionIntervalCustom}
	case dataSaveTimes:
		return Action{Kind: ActionSaveTimes}
	case dataConfirm:
		return Action{Kind: ActionConfirm}
	case dataGroup:
		if id, err := strconv.ParseInt(payload, 10, 64); err == nil {
			return Action{Kind: ActionToggleGroup, ID: id}
		}
	case dataInterval:
		if n, err := strconv.Atoi(payload); err == nil && n > 0 {
			return Action{Kind: ActionInterval, Minutes: n}
		}
	case dataSlot:
		if sl, ok := parseSlot(payload); ok {
			return Action{Kind: ActionToggleSlot, Slot: sl}
		}
	case dataCampaignView:
		if id, err := strconv.ParseInt(payload, 10, 64); err == nil {
			return Action{Kind: ActionCampaignView, ID: id}
		}
	case dataCampaignDelete:
		if id, err := strconv.ParseInt(payload, 10, 64); err == nil {
			return Action{Kind: ActionCampaignDelete, ID: id}
		}
	case dataBan:
		if id, err := strconv.ParseInt(payload, 10, 64); err == nil {
			return Action{Kind: ActionBan, ID: id}
		}
	case dataUnban:
		if id, err := strconv.ParseInt(payload, 10, 64); err == nil {
			return Action{Kind: ActionUnban, ID: id}
		}
	case dataPrincipalDelete:
		if id, err := strconv.ParseInt(payload, 10, 64); err == nil {
			return Action{Kind: ActionPrincipalDelete, ID: id}
		}
	}
	return Action{Kind: ActionUnknown}
}

func slotData(sl store.Slot) string {
	return tgui.Data(dataSlot, fmt.Sprintf("%d_%d", sl.Hour, sl.Minute))
}

func parseSlot(payload string) (store.Slot, bool) {
	h, m, ok := strings.Cut(payload, "_")
	if !ok {
		return store.Slot{}, false
	}
	hour, err := strconv.Atoi(h)
	if err != nil {
		return store.Slot{}, false
	}
	minute, err := strconv.Atoi(m)
	if err != nil {
		return store.Slot{}, false
	}
	sl := store.Slot{Hour: hour, Minute: minute}
	return sl, sl.Valid()
}

func idData(action string, id int64) string {
	return tgui.Data(action, strconv.FormatInt(id, 10))
}
