package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "mailerbot/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	s, err := Open(Config{Path: filepath.Join(t.TempDir(), "test.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPrincipalLifecycle(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if p, err := s.Principal(ctx, 42); err != nil || p != nil {
		t.Fatalf("unknown principal: got %v, %v; want nil, nil", p, err)
	}

	if err := s.SavePrincipal(ctx, Principal{PlatformID: 42, Username: "alice", Active: true}); err != nil {
		t.Fatalf("SavePrincipal error: %v", err)
	}
	// Saving again must not clobber the existing row.
	if err := s.SavePrincipal(ctx, Principal{PlatformID: 42, Username: "other", Active: false}); err != nil {
		t.Fatalf("second SavePrincipal error: %v", err)
	}

	p, err := s.Principal(ctx, 42)
	if err != nil {
		t.Fatalf("Principal error: %v", err)
	}
	if p == nil || p.Username != "alice" || !p.Active {
		t.Fatalf("unexpected principal: %+v", p)
	}

	if err := s.SetActive(ctx, 42, false); err != nil {
		t.Fatalf("SetActive error: %v", err)
	}
	p, _ = s.Principal(ctx, 42)
	if p.Active {
		t.Fatal("principal still active after SetActive(false)")
	}

	deleted, err := s.DeletePrincipal(ctx, p.ID)
	if err != nil {
		t.Fatalf("DeletePrincipal error: %v", err)
	}
	if deleted.PlatformID != 42 {
		t.Fatalf("deleted wrong principal: %+v", deleted)
	}
	if p, _ := s.Principal(ctx, 42); p != nil {
		t.Fatal("principal still present after delete")
	}
}

func TestSetActiveUnknownPrincipal(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	if err := s.SetActive(context.Background(), 999, true); err != ErrNotFound {
		t.Fatalf("SetActive unknown: got %v, want ErrNotFound", err)
	}
}

func TestCreateCampaignAtomic(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	c := &Campaign{
		OwnerID:         7,
		Name:            "promo",
		GroupNames:      []string{"one", "two"},
		GroupIDs:        []int64{100, 200},
		Message:         "hello",
		IntervalMinutes: 30,
	}

	// Zero slots must not leave a campaign behind.
	if _, err := s.CreateCampaign(ctx, c, nil); err == nil {
		t.Fatal("expected error creating campaign without slots")
	}
	if got, _ := s.ListCampaigns(ctx, 7); len(got) != 0 {
		t.Fatalf("orphan campaign visible: %+v", got)
	}

	// Invalid slot aborts the whole transaction, campaign included.
	if _, err := s.CreateCampaign(ctx, c, []Slot{{Hour: 10, Minute: 0}, {Hour: 25, Minute: 0}}); err == nil {
		t.Fatal("expected error for invalid slot")
	}
	if got, _ := s.ListCampaigns(ctx, 7); len(got) != 0 {
		t.Fatalf("half-written campaign visible: %+v", got)
	}

	id, err := s.CreateCampaign(ctx, c, []Slot{{Hour: 10, Minute: 0}, {Hour: 22, Minute: 30}})
	if err != nil {
		t.Fatalf("CreateCampaign error: %v", err)
	}

	got, err := s.Campaign(ctx, id, 7)
	if err != nil {
		t.Fatalf("Campaign error: %v", err)
	}
	if got.Name != "promo" || len(got.GroupIDs) != 2 || got.GroupIDs[1] != 200 {
		t.Fatalf("unexpected campaign: %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Fatal("CreatedAt not recorded")
	}

	slots, err := s.CampaignSlots(ctx, id)
	if err != nil {
		t.Fatalf("CampaignSlots error: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("slots = %v, want 2", slots)
	}
}

func TestCampaignOwnerScoping(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.CreateCampaign(ctx, &Campaign{OwnerID: 1, Name: "mine", GroupIDs: []int64{5}, GroupNames: []string{"g"}, Message: "m", IntervalMinutes: 60},
		[]Slot{{Hour: 9, Minute: 0}})
	if err != nil {
		t.Fatalf("CreateCampaign error: %v", err)
	}

	if _, err := s.Campaign(ctx, id, 2); err != ErrNotFound {
		t.Fatalf("foreign owner lookup: got %v, want ErrNotFound", err)
	}
	if err := s.DeleteCampaign(ctx, id, 2); err != ErrNotFound {
		t.Fatalf("foreign owner delete: got %v, want ErrNotFound", err)
	}
	if err := s.DeleteCampaign(ctx, id, 1); err != nil {
		t.Fatalf("owner delete error: %v", err)
	}
	if slots, _ := s.CampaignSlots(ctx, id); len(slots) != 0 {
		t.Fatalf("slots survived campaign delete: %v", slots)
	}
}

func TestDueCampaigns(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	mk := func(owner int64, name string, slots ...Slot) int64 {
		t.Helper()
		id, err := s.CreateCampaign(ctx, &Campaign{OwnerID: owner, Name: name, GroupIDs: []int64{1}, GroupNames: []string{"g"}, Message: "m", IntervalMinutes: 30}, slots)
		if err != nil {
			t.Fatalf("CreateCampaign(%s) error: %v", name, err)
		}
		return id
	}

	a := mk(1, "a", Slot{Hour: 8, Minute: 0}, Slot{Hour: 20, Minute: 0})
	mk(1, "b", Slot{Hour: 9, Minute: 30})
	c := mk(2, "c", Slot{Hour: 8, Minute: 0})

	due, err := s.DueCampaigns(ctx, 8, 0)
	if err != nil {
		t.Fatalf("DueCampaigns error: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("due = %d campaigns, want 2", len(due))
	}
	if due[0].ID != a || due[1].ID != c {
		t.Fatalf("due order = %d,%d want %d,%d", due[0].ID, due[1].ID, a, c)
	}

	if due, _ := s.DueCampaigns(ctx, 8, 1); len(due) != 0 {
		t.Fatalf("unexpected due campaigns at 08:01: %v", due)
	}
}

func TestCreatedAtRoundTrip(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	created := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	id, err := s.CreateCampaign(ctx, &Campaign{OwnerID: 3, Name: "old", GroupIDs: []int64{1}, GroupNames: []string{"g"}, Message: "m", IntervalMinutes: 15, CreatedAt: created},
		[]Slot{{Hour: 0, Minute: 0}})
	if err != nil {
		t.Fatalf("CreateCampaign error: %v", err)
	}
	got, err := s.Campaign(ctx, id, 3)
	if err != nil {
		t.Fatalf("Campaign error: %v", err)
	}
	if !got.CreatedAt.Equal(created) {
		t.Fatalf("CreatedAt = %v, want %v", got.CreatedAt, created)
	}
}

func TestSlotValid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		slot Slot
		ok   bool
	}{
		{Slot{0, 0}, true},
		{Slot{23, 59}, true},
		{Slot{24, 0}, false},
		{Slot{-1, 0}, false},
		{Slot{12, 60}, false},
	}
	for _, tt := range tests {
		if got := tt.slot.Valid(); got != tt.ok {
			t.Fatalf("Valid(%+v) = %v, want %v", tt.slot, got, tt.ok)
		}
	}
}
