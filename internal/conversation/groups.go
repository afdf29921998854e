package conversation

import (
	"context"

	"mailerbot/internal/platform"
	logx "mailerbot/pkg/logx"
)

// discoverGroups lists the principal's group memberships and keeps the ones
// matching the chosen class. Role lookups can fail per group; the two
// classes handle that differently on purpose:
//
//   - classOther includes a group whose role could not be checked,
//   - classAdmin excludes it.
//
// Unverifiable groups are never granted the privileged classification. This
// asymmetry is an observed, documented behavior and must not be normalized.
func (e *Engine) discoverGroups(ctx context.Context, st *state, class groupClass) ([]platform.Group, error) {
	groups, err := st.client.Groups(ctx, groupLimit)
	if err != nil {
		return nil, err
	}

	kept := make([]platform.Group, 0, len(groups))
	for _, g := range groups {
		role, err := st.client.ParticipantRole(ctx, g.ID, st.me.ID)
		if err != nil {
			e.log.Debug("role lookup failed",
				logx.Int64("group", g.ID),
				logx.Int64("principal", st.me.ID),
				logx.Err(err))
			if class == classOther {
				kept = append(kept, g)
			}
			continue
		}
		if role.Elevated() == (class == classAdmin) {
			kept = append(kept, g)
		}
	}
	return kept, nil
}

// startGroupSelection runs discovery and defaults the selection set to every
// group in the class. The user only deselects from here.
func (e *Engine) startGroupSelection(ctx context.Context, st *state, chatID int64, class groupClass) {
	groups, err := e.discoverGroups(ctx, st, class)
	if err != nil {
		e.log.Warn("group discovery failed", logx.Int64("principal", st.me.ID), logx.Err(err))
		e.sendText(ctx, chatID, msgSomethingWrong)
		return
	}
	if len(groups) == 0 {
		e.sendText(ctx, chatID, msgNoGroups)
		e.editMenu(ctx, st, chatID, msgGroupType, groupTypeMenu())
		return
	}

	st.groupClass = class
	st.groups = groups
	st.selected = make(map[int64]bool, len(groups))
	for _, g := range groups {
		st.selected[g.ID] = true
	}
	st.stage = StageChoosingGroups
	e.editMenu(ctx, st, chatID, msgPickGroups, groupsMarkup(st))
}

// selectedGroups returns the kept groups in discovery order. The stored
// order is the delivery order.
func (st *state) selectedGroups() ([]string, []int64) {
	names := make([]string, 0, len(st.groups))
	ids := make([]int64, 0, len(st.groups))
	for _, g := range st.groups {
		if st.selected[g.ID] {
			names = append(names, g.Title)
			ids = append(ids, g.ID)
		}
	}
	return names, ids
}
