package conversation

import (
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"

	"mailerbot/internal/store"
	"mailerbot/pkg/tgui"
)

// User-facing copy. Kept short; internal detail never leaks here.
const (
	msgSomethingWrong = "Something went wrong, please try again."
	msgPendingApprove = "Your account is waiting for approval."
	msgAskPhone       = "Send your phone number in international format, e.g. <code>+15551234567</code>."
	msgBadPhone       = "That does not look like a phone number. Send it like <code>+15551234567</code>."
	msgAskDigit       = "A confirmation code was sent to your account. Enter it one digit per message."
	msgNextDigit      = "Got it, next digit."
	msgBadDigit       = "Send one digit at a time, 0-9."
	msgCodeRejected   = "The code was rejected. Start again from your phone number."
	msgAskPassword    = "Two-step verification is on. Send your password."
	msgWrongPassword  = "Wrong password, try again."
	msgLoggedIn       = "You are logged in."
	msgLoggedOut      = "Session removed. Send /start to log in again."
	msgMainMenu       = "What would you like to do?"
	msgGroupType      = "Which groups should the campaign target?"
	msgPickGroups     = "All groups are selected. Tap to deselect, then press Done."
	msgNoGroups       = "No matching groups found for your account."
	msgNeedOneGroup   = "Keep at least one group selected."
	msgAskTitle       = "Name the campaign (up to 10 characters)."
	msgTitleTooLong   = "That name is too long. Up to 10 characters, please."
	msgAskMedia       = "Send one photo or video for the campaign, or skip."
	msgMediaOnly      = "Send a photo or a video, or press Skip."
	msgAskText        = "Send the campaign message text."
	msgAskInterval    = "How often should it go out?"
	msgAskCustom      = "Send the interval in minutes (a positive number)."
	msgBadInterval    = "Send a positive whole number of minutes."
	msgPickTimes      = "Every time below is selected. Tap to deselect, then press Save."
	msgNeedOneSlot    = "Keep at least one time selected."
	msgSaved          = "Campaign saved."
	msgSaveFailed     = "Could not save the campaign. Press Confirm to try again."
	msgNoCampaigns    = "You have no campaigns yet."
	msgNotAllowed     = "This action is not available."
	msgUseButtons     = "Use the buttons above, or send /start."
	msgDeleted        = "Deleted."
)

const checkMark = "✅ "

func pendingApprovalText(contact string) string {
	if contact == "" {
		return msgPendingApprove
	}
	return msgPendingApprove + " Contact " + string(tgui.Esc(contact)) + "."
}

func mainMenu(owner bool) *tele.ReplyMarkup {
	kb := tgui.NewInline().
		Row(tgui.Btn("New campaign", dataCreate)).
		Row(tgui.Btn("My campaigns", dataCampaigns))
	if owner {
		kb.Row(tgui.Btn("Principals", dataPrincipals))
	}
	return kb.Markup()
}

func groupTypeMenu() *tele.ReplyMarkup {
	return tgui.NewInline().
		Row(tgui.Btn("Groups I admin", dataGroupsAdmin)).
		Row(tgui.Btn("Other groups", dataGroupsOther)).
		Row(tgui.Btn("Back", dataBack)).
		Markup()
}

func groupsMarkup(st *state) *tele.ReplyMarkup {
	kb := tgui.NewInline()
	for _, g := range st.groups {
		label := g.Title
		if st.selected[g.ID] {
			label = checkMark + label
		}
		kb.Row(tgui.Btn(label, idData(dataGroup, g.ID)))
	}
	rm, _ := kb.MarkupWithin(
		tele.Row{tgui.Btn("Done", dataGroupsDone), tgui.Btn("Back", dataBack)},
	)
	return rm
}

func mediaMenu() *tele.ReplyMarkup {
	return tgui.NewInline().Row(tgui.Btn("Skip", dataSkipMedia)).Markup()
}

func intervalMenu() *tele.ReplyMarkup {
	return tgui.NewInline().
		Row(
			tgui.Btn("15 min", tgui.Data(dataInterval, "15")),
			tgui.Btn("20 min", tgui.Data(dataInterval, "20")),
		).
		Row(
			tgui.Btn("30 min", tgui.Data(dataInterval, "30")),
			tgui.Btn("60 min", tgui.Data(dataInterval, "60")),
		).
		Row(tgui.Btn("Custom", dataIntervalCustom)).
		Row(tgui.Btn("Back", dataBack)).
		Markup()
}

// timesMarkup renders the slot grid three per row. Dense grids overflow the
// platform's button cap; MarkupWithin keeps the control row and marks the
// cut with an indicator instead of failing to render.
func timesMarkup(st *state) *tele.ReplyMarkup {
	buttons := make([]tele.Btn, 0, len(st.slots))
	for _, sl := range st.slots {
		label := slotLabel(sl)
		if st.picked[sl] {
			label = checkMark + label
		}
		buttons = append(buttons, tgui.Btn(label, slotData(sl)))
	}
	kb := tgui.NewInline()
	for _, row := range tgui.Grid(3, buttons) {
		kb.Row(row...)
	}
	rm, _ := kb.MarkupWithin(
		tele.Row{tgui.Btn("Save", dataSaveTimes), tgui.Btn("Back", dataBack)},
	)
	return rm
}

func slotLabel(sl store.Slot) string {
	return fmt.Sprintf("%02d:%02d", sl.Hour, sl.Minute)
}

func confirmMarkup() *tele.ReplyMarkup {
	return tgui.NewInline().
		Row(tgui.Btn("Confirm", dataConfirm), tgui.Btn("Back", dataBack)).
		Markup()
}

func confirmText(st *state) string {
	var b strings.Builder
	b.WriteString(string(tgui.B("Review the campaign")) + "\n\n")
	fmt.Fprintf(&b, "Name: %s\n", tgui.Esc(st.title))
	fmt.Fprintf(&b, "Groups: %d\n", countSelected(st.selected))
	fmt.Fprintf(&b, "Every %d min, %d times a day\n", st.interval, countPicked(st.picked))
	if st.media != nil {
		fmt.Fprintf(&b, "Attachment: %s\n", st.media.Kind)
	}
	b.WriteString("\n" + string(tgui.Esc(st.text)))
	return b.String()
}

func campaignsMarkup(campaigns []store.Campaign) *tele.ReplyMarkup {
	kb := tgui.NewInline()
	for _, c := range campaigns {
		kb.Row(tgui.Btn(c.Name, idData(dataCampaignView, c.ID)))
	}
	rm, _ := kb.MarkupWithin(tele.Row{tgui.Btn("Back", dataBack)})
	return rm
}

func campaignDetailMarkup(id int64) *tele.ReplyMarkup {
	return tgui.NewInline().
		Row(tgui.Btn("Delete", idData(dataCampaignDelete, id))).
		Row(tgui.Btn("Back", dataCampaigns)).
		Markup()
}

func campaignDetailText(c *store.Campaign, slots []store.Slot) string {
	var b strings.Builder
	b.WriteString(string(tgui.B(c.Name)) + "\n\n")
	fmt.Fprintf(&b, "Groups: %s\n", tgui.Esc(strings.Join(c.GroupNames, ", ")))
	fmt.Fprintf(&b, "Every %d min, %d times a day\n", c.IntervalMinutes, len(slots))
	if len(slots) > 0 {
		labels := make([]string, 0, len(slots))
		for _, sl := range slots {
			labels = append(labels, slotLabel(sl))
		}
		fmt.Fprintf(&b, "Times: %s\n", strings.Join(labels, " "))
	}
	if c.Media != nil {
		fmt.Fprintf(&b, "Attachment: %s\n", c.Media.Kind)
	}
	fmt.Fprintf(&b, "Created: %s\n", c.CreatedAt.Format("2006-01-02"))
	b.WriteString("\n" + string(tgui.Esc(c.Message)))
	return b.String()
}

func rosterMarkup(principals []store.Principal) *tele.ReplyMarkup {
	kb := tgui.NewInline()
	for _, p := range principals {
		toggle := tgui.Btn("Ban", idData(dataBan, p.ID))
		if !p.Active {
			toggle = tgui.Btn("Unban", idData(dataUnban, p.ID))
		}
		kb.Row(
			tgui.Btn(principalLabel(p), dataNoop),
			toggle,
			tgui.Btn("✖", idData(dataPrincipalDelete, p.ID)),
		)
	}
	rm, _ := kb.MarkupWithin(tele.Row{tgui.Btn("Back", dataBack)})
	return rm
}

func principalLabel(p store.Principal) string {
	name := strings.TrimSpace(p.FirstName + " " + p.LastName)
	if p.Username != "" {
		name = "@" + p.Username
	}
	if name == "" {
		name = fmt.Sprintf("id %d", p.PlatformID)
	}
	if !p.Active {
		name = "\U0001F6AB " + name
	}
	return name
}

func countSelected(m map[int64]bool) int {
	n := 0
	for _, v := range m {
		if v {
			n++
		}
	}
	return n
}

func countPicked(m map[store.Slot]bool) int {
	n := 0
	for _, v := range m {
		if v {
			n++
		}
	}
	return n
}
