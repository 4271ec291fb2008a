package testutil

import (
	"time"

	"github.com/antikraj/plugin-license-server1/internal/license"
)

// FixtureNow is the reference instant used by license fixtures.
var FixtureNow = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// Fixture keys seeded by LicenseFixtures.
const (
	FixtureFreeKey    = "FREEKEY000000001"
	FixtureBoundKey   = "BOUNDKEY00000001"
	FixtureStaleKey   = "STALEKEY00000001"
	FixtureExpiredKey = "EXPIREDKEY000001"
	FixtureScopedKey  = "SCOPEDKEY0000001"
)

// LicenseFixtures returns a snapshot covering each connection status relative
// to FixtureNow with a 10 second heartbeat timeout.
func LicenseFixtures() map[string]license.Record {
	expires := FixtureNow.AddDate(0, 0, 30)
	fresh := FixtureNow.Add(-2 * time.Second)
	stale := FixtureNow.Add(-time.Minute)

	return map[string]license.Record{
		FixtureFreeKey: {
			Owner:     "alice",
			ExpiresAt: expires,
			CreatedAt: FixtureNow,
		},
		FixtureBoundKey: {
			Owner:           "bob",
			ExpiresAt:       expires,
			BoundClientID:   license.StringPtr("srv1"),
			InUse:           true,
			LastHeartbeatAt: &fresh,
			CreatedAt:       FixtureNow,
		},
		FixtureStaleKey: {
			Owner:           "carol",
			ExpiresAt:       expires,
			BoundClientID:   license.StringPtr("srv9"),
			InUse:           true,
			LastHeartbeatAt: &stale,
			CreatedAt:       FixtureNow,
		},
		FixtureExpiredKey: {
			Owner:     "dave",
			ExpiresAt: FixtureNow.Add(-time.Hour),
			CreatedAt: FixtureNow.AddDate(0, 0, -30),
		},
		FixtureScopedKey: {
			Owner:        "erin",
			ProductScope: license.StringPtr("photoplug"),
			ExpiresAt:    expires,
			CreatedAt:    FixtureNow,
		},
	}
}
