package catalog

import (
	"context"
	"testing"
	"time"
)

func TestUpgrade_NeverRegresses(t *testing.T) {
	if got := Upgrade(RoleRepeater, RoleCompanion); got != RoleRepeater {
		t.Fatalf("expected repeater to stay repeater, got %v", got)
	}
	if got := Upgrade(RoleCompanion, RoleRepeater); got != RoleRepeater {
		t.Fatalf("expected companion to upgrade to repeater, got %v", got)
	}
	if got := Upgrade("", RoleSensor); got != RoleSensor {
		t.Fatalf("expected empty existing role to take the observed role, got %v", got)
	}
	if got := Upgrade(RoleRoomServer, RoleSensor); got != RoleRoomServer {
		t.Fatalf("expected roomserver to outrank sensor, got %v", got)
	}
}

func TestContact_Prefix(t *testing.T) {
	c := Contact{PublicKey: "deadbeef"}
	if c.Prefix() != "de" {
		t.Fatalf("expected prefix 'de', got %q", c.Prefix())
	}
	short := Contact{PublicKey: "d"}
	if short.Prefix() != "d" {
		t.Fatalf("expected short key returned as-is, got %q", short.Prefix())
	}
}

type fakeRepo struct {
	byRole  map[Role]int
	active  int
	newSince int
}

func (f fakeRepo) Upsert(context.Context, Contact) error { return nil }
func (f fakeRepo) ByPublicKey(context.Context, string) (Contact, bool, error) {
	return Contact{}, false, nil
}
func (f fakeRepo) ByPrefix(context.Context, string, time.Time) ([]Contact, error) { return nil, nil }
func (f fakeRepo) CountByRole(_ context.Context, role Role) (int, error)          { return f.byRole[role], nil }
func (f fakeRepo) CountActiveSince(context.Context, time.Time) (int, error)       { return f.active, nil }
func (f fakeRepo) CountNewSince(context.Context, time.Time) (int, error)          { return f.newSince, nil }
func (f fakeRepo) ListSortedByLastHeard(context.Context) ([]Contact, error)       { return nil, nil }

func TestBuildMeshInfo_SumsRolesAndQueriesWindows(t *testing.T) {
	repo := fakeRepo{
		byRole: map[Role]int{
			RoleRepeater:   2,
			RoleRoomServer: 1,
			RoleSensor:     3,
			RoleCompanion:  5,
		},
		active:   7,
		newSince: 4,
	}

	info, err := BuildMeshInfo(context.Background(), repo, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.TotalContacts != 11 {
		t.Fatalf("expected total contacts 11, got %d", info.TotalContacts)
	}
	if info.TotalRepeaters != 2 || info.TotalRoomServers != 1 || info.TotalSensors != 3 {
		t.Fatalf("unexpected role breakdown: %+v", info)
	}
	if info.Active24h != 7 || info.ActiveContacts30d != 7 {
		t.Fatalf("expected active-window counts to reflect repo, got %+v", info)
	}
	if info.NewCompanions7d != 4 {
		t.Fatalf("expected new companions 4, got %d", info.NewCompanions7d)
	}
}
