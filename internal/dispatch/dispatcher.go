// Package dispatch runs the background delivery loop: once per wall-clock
// minute it looks up schedule slots matching the current (hour, minute),
// resolves the owning principal's session and delivers to each stored group.
//
// Delivery is at-least-once by design: there is no "already sent this tick"
// marker, so a restart inside a due minute can re-send that slot.
package dispatch

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"mailerbot/internal/platform"
	"mailerbot/internal/session"
	"mailerbot/internal/store"
	logx "mailerbot/pkg/logx"
)

// SessionLoader is the slice of the session manager the dispatcher needs.
type SessionLoader interface {
	Load(ctx context.Context, principalID int64) (platform.Client, error)
}

var _ SessionLoader = (*session.Manager)(nil)

type Dispatcher struct {
	store    store.Store
	sessions SessionLoader
	sender   *Sender
	log      logx.Logger

	// sched yields minute boundaries; the loop sleeps until the next one,
	// which is exactly "60 − current second".
	sched cron.Schedule
	now   func() time.Time
}

func New(st store.Store, sessions SessionLoader, sender *Sender, log logx.Logger) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	// The standard parser cannot fail on a literal every-minute spec.
	sched, err := cron.ParseStandard("* * * * *")
	if err != nil {
		panic(err)
	}
	return &Dispatcher{
		store:    st,
		sessions: sessions,
		sender:   sender,
		log:      log,
		sched:    sched,
		now:      time.Now,
	}
}

// Run blocks until ctx is cancelled, waking at each minute boundary.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.log.Info("dispatcher started")
	for {
		now := d.now()
		next := d.sched.Next(now)
		t := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			t.Stop()
			d.log.Info("dispatcher stopped")
			return ctx.Err()
		case tick := <-t.C:
			d.Tick(ctx, tick)
		}
	}
}

// Tick performs one pass for the wall-clock minute of now. Exported so tests
// can drive the dispatcher without waiting on real minutes.
func (d *Dispatcher) Tick(ctx context.Context, now time.Time) {
	hour, minute := now.Hour(), now.Minute()
	due, err := d.store.DueCampaigns(ctx, hour, minute)
	if err != nil {
		// Storage hiccups skip the tick; the slot fires again next match.
		d.log.Error("due campaign query failed", logx.Err(err))
		return
	}
	if len(due) == 0 {
		return
	}
	d.log.Info("tick", logx.Int("hour", hour), logx.Int("minute", minute), logx.Int("due", len(due)))

	for _, c := range due {
		select {
		case <-ctx.Done():
			return
		default:
		}
		d.dispatchOne(ctx, c)
	}
}

// dispatchOne delivers a single due campaign. A missing session or a failed
// group resolution skips just that campaign or group; nothing here surfaces
// an error to the user.
func (d *Dispatcher) dispatchOne(ctx context.Context, c store.Campaign) {
	log := d.log.With(logx.Int64("campaign", c.ID), logx.Int64("owner", c.OwnerID))

	client, err := d.sessions.Load(ctx, c.OwnerID)
	if err != nil {
		log.Warn("session load failed, skipping campaign", logx.Err(err))
		return
	}
	if client == nil {
		log.Warn("no session for owner, skipping campaign")
		return
	}
	defer func() { _ = client.Disconnect() }()

	sent, failed := 0, 0
	// Stored group-id order is the delivery order.
	for _, gid := range c.GroupIDs {
		group, err := client.ResolveGroup(ctx, gid)
		if err != nil {
			log.Warn("group resolution failed, skipping group", logx.Int64("group", gid), logx.Err(err))
			failed++
			continue
		}
		if d.sender.Send(ctx, client, group, c.Message, c.Media) {
			sent++
		} else {
			failed++
		}
	}
	log.Info("campaign dispatched", logx.Int("sent", sent), logx.Int("failed", failed))
}
