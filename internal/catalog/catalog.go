// Package catalog tracks every repeater, room server, sensor and companion
// node the bot has ever heard, keyed by its Ed25519 public key.
package catalog

import (
	"context"
	"time"
)

// Role classifies a contact by the advert type that introduced it.
type Role string

const (
	RoleCompanion  Role = "companion"
	RoleRepeater   Role = "repeater"
	RoleRoomServer Role = "roomserver"
	RoleSensor     Role = "sensor"
)

// roleRank orders roles so a contact's role only ever upgrades, never
// downgrades (spec.md §3.6: role never regresses from repeater to companion).
var roleRank = map[Role]int{
	RoleCompanion:  0,
	RoleSensor:     1,
	RoleRoomServer: 2,
	RoleRepeater:   2,
}

// Upgrade reports the role that should be stored given an existing role and
// a newly observed one: whichever ranks higher wins, ties keep the existing.
func Upgrade(existing, observed Role) Role {
	if existing == "" {
		return observed
	}
	if roleRank[observed] > roleRank[existing] {
		return observed
	}
	return existing
}

// Contact is one row of complete_contact_tracking.
type Contact struct {
	PublicKey           string
	Name                string
	Role                Role
	FirstHeard          time.Time
	LastHeard           time.Time
	LastAdvertTimestamp time.Time
	Latitude            *float64
	Longitude           *float64
	City                string
	State               string
	Country             string
	IsStarred           bool
	LastSNR             *float64
	LastRSSI            *int
}

// Prefix returns the 2-hex-char mesh path prefix derived from the public key.
func (c Contact) Prefix() string {
	if len(c.PublicKey) < 2 {
		return c.PublicKey
	}
	return c.PublicKey[:2]
}

// Repository persists and queries the contact catalog.
type Repository interface {
	Upsert(ctx context.Context, c Contact) error
	ByPublicKey(ctx context.Context, publicKey string) (Contact, bool, error)
	ByPrefix(ctx context.Context, prefix string, since time.Time) ([]Contact, error)
	CountByRole(ctx context.Context, role Role) (int, error)
	CountActiveSince(ctx context.Context, since time.Time) (int, error)
	CountNewSince(ctx context.Context, since time.Time) (int, error)
	ListSortedByLastHeard(ctx context.Context) ([]Contact, error)
}

// MeshInfo summarizes catalog state for scheduled-message placeholders
// ({total_contacts}, {total_repeaters}, {new_companions_7d}, …).
type MeshInfo struct {
	TotalContacts    int
	TotalRepeaters   int
	TotalRoomServers int
	TotalSensors     int
	Active24h        int
	NewCompanions7d  int
	ActiveContacts30d int
}

// BuildMeshInfo queries the repository for every figure a scheduled message
// or keyword placeholder might reference.
func BuildMeshInfo(ctx context.Context, repo Repository, now time.Time) (MeshInfo, error) {
	var info MeshInfo
	var err error

	if info.TotalRepeaters, err = repo.CountByRole(ctx, RoleRepeater); err != nil {
		return info, err
	}
	if info.TotalRoomServers, err = repo.CountByRole(ctx, RoleRoomServer); err != nil {
		return info, err
	}
	if info.TotalSensors, err = repo.CountByRole(ctx, RoleSensor); err != nil {
		return info, err
	}
	companions, err := repo.CountByRole(ctx, RoleCompanion)
	if err != nil {
		return info, err
	}
	info.TotalContacts = info.TotalRepeaters + info.TotalRoomServers + info.TotalSensors + companions

	if info.Active24h, err = repo.CountActiveSince(ctx, now.Add(-24*time.Hour)); err != nil {
		return info, err
	}
	if info.NewCompanions7d, err = repo.CountNewSince(ctx, now.Add(-7*24*time.Hour)); err != nil {
		return info, err
	}
	if info.ActiveContacts30d, err = repo.CountActiveSince(ctx, now.Add(-30*24*time.Hour)); err != nil {
		return info, err
	}

	return info, nil
}
