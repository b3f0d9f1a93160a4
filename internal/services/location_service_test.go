package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stigerapp/go-rental-backend/internal/domain"
	"github.com/stigerapp/go-rental-backend/internal/repo"
)

func TestLocationSeed_InsertsOnceAndKeepsSnapshots(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()

	svc := &LocationService{DB: db, Hardware: &fakeHardware{}}
	if err := svc.Seed(ctx); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	locs, err := repo.ListLocations(ctx, db)
	if err != nil || len(locs) != len(defaultLocations) {
		t.Fatalf("after seed: %d locations, err=%v", len(locs), err)
	}

	// A later restart must not reset availability already gathered.
	at := time.Now().UTC()
	if err := repo.UpdateLocationAvailability(ctx, db, defaultLocations[0].DeviceID, 5, 8, true, at); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if err := svc.Seed(ctx); err != nil {
		t.Fatalf("re-seed: %v", err)
	}
	locs, _ = repo.ListLocations(ctx, db)
	var seeded *domain.Location
	for i := range locs {
		if locs[i].DeviceID == defaultLocations[0].DeviceID {
			seeded = &locs[i]
		}
	}
	if seeded == nil || seeded.Available != 5 {
		t.Fatalf("re-seed clobbered snapshot: %+v", seeded)
	}
}

func TestLocationList_RefreshesStaleSnapshots(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()

	if err := repo.UpsertLocation(ctx, db, domain.Location{
		DeviceID: "DTN00872", Name: "Авиапарк", Total: 8,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	svc := &LocationService{DB: db, Hardware: &fakeHardware{}}
	locs, err := svc.List(ctx)
	if err != nil || len(locs) != 1 {
		t.Fatalf("List: %+v err=%v", locs, err)
	}
	// fakeHardware defaults: 4 empty of 8, online.
	if locs[0].Available != 4 || locs[0].Total != 8 || !locs[0].Online {
		t.Fatalf("snapshot not refreshed: %+v", locs[0])
	}
	if locs[0].CheckedAt.IsZero() {
		t.Fatalf("checked_at not stamped")
	}

	// Snapshot persisted, visible without the service.
	stored, _ := repo.ListLocations(ctx, db)
	if stored[0].Available != 4 || !stored[0].Online {
		t.Fatalf("snapshot not persisted: %+v", stored[0])
	}
}

func TestLocationList_FreshSnapshotSkipsHardware(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()

	if err := repo.UpsertLocation(ctx, db, domain.Location{
		DeviceID: "DTN00872", Name: "Авиапарк", Available: 3, Total: 8, Online: true,
		CheckedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// A hardware call would fail loudly; a fresh snapshot must not make one.
	svc := &LocationService{DB: db, Hardware: &fakeHardware{queryErr: errors.New("must not be called")}}
	locs, err := svc.List(ctx)
	if err != nil || len(locs) != 1 {
		t.Fatalf("List: %+v err=%v", locs, err)
	}
	if locs[0].Available != 3 || !locs[0].Online {
		t.Fatalf("fresh snapshot mutated: %+v", locs[0])
	}
}

func TestLocationList_DeadCabinetDegradesToOffline(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()

	if err := repo.UpsertLocation(ctx, db, domain.Location{
		DeviceID: "DTN00872", Name: "Авиапарк", Available: 3, Total: 8, Online: true,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	svc := &LocationService{DB: db, Hardware: &fakeHardware{queryErr: errors.New("cabinet offline")}}
	locs, err := svc.List(ctx)
	if err != nil || len(locs) != 1 {
		t.Fatalf("List should not fail for a dead cabinet: %+v err=%v", locs, err)
	}
	got := locs[0]
	if got.Online {
		t.Fatalf("dead cabinet still online: %+v", got)
	}
	// Last known availability is kept alongside the offline flag.
	if got.Available != 3 || got.Total != 8 {
		t.Fatalf("last known snapshot lost: %+v", got)
	}
}
