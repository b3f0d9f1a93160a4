// Package services – LocationService
//
// Locations are the map layer of the storefront: static cabinet placement
// seeded at startup, with availability refreshed from the hardware platform
// on demand. A refresh that fails for one cabinet degrades that cabinet to
// its last known snapshot rather than failing the listing.
package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/stigerapp/go-rental-backend/internal/domain"
	"github.com/stigerapp/go-rental-backend/internal/repo"
)

// locationRefreshInterval bounds how stale a snapshot may be before List
// asks the hardware platform again.
const locationRefreshInterval = time.Minute

// LocationService serves the cabinet map.
type LocationService struct {
	DB       *gorm.DB
	Hardware HardwareGateway
}

// List returns all known locations, refreshing stale availability snapshots
// from the hardware platform first.
func (s *LocationService) List(ctx context.Context) ([]domain.Location, error) {
	locs, err := repo.ListLocations(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	cutoff := time.Now().UTC().Add(-locationRefreshInterval)
	for i := range locs {
		if locs[i].CheckedAt.After(cutoff) {
			continue
		}
		if fresh, ok := s.refresh(ctx, &locs[i]); ok {
			locs[i] = *fresh
		}
	}
	return locs, nil
}

// refresh pulls live cabinet state and persists the snapshot. A query
// failure marks the cabinet offline; persistence failures keep the fresh
// in-memory view.
func (s *LocationService) refresh(ctx context.Context, loc *domain.Location) (*domain.Location, bool) {
	now := time.Now().UTC()
	device, err := s.Hardware.QueryDevice(ctx, loc.DeviceID)
	if err != nil {
		log.Warn().Err(err).Str("device_id", loc.DeviceID).Msg("location refresh failed")
		out := *loc
		out.Online = false
		out.CheckedAt = now
		if err := repo.UpdateLocationAvailability(ctx, s.DB, loc.DeviceID, out.Available, out.Total, false, now); err != nil {
			log.Warn().Err(err).Str("device_id", loc.DeviceID).Msg("location snapshot persist failed")
		}
		return &out, true
	}

	out := *loc
	out.Available = device.EmptySlots
	out.Total = device.TotalSlots
	out.Online = device.Online
	out.CheckedAt = now
	if device.Address != "" {
		out.Address = device.Address
	}
	if err := repo.UpdateLocationAvailability(ctx, s.DB, loc.DeviceID, out.Available, out.Total, out.Online, now); err != nil {
		log.Warn().Err(err).Str("device_id", loc.DeviceID).Msg("location snapshot persist failed")
	}
	return &out, true
}

// Seed inserts the static cabinet placements when they are not present yet.
// Existing rows keep their availability snapshots.
func (s *LocationService) Seed(ctx context.Context) error {
	existing, err := repo.ListLocations(ctx, s.DB)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(existing))
	for _, l := range existing {
		known[l.DeviceID] = true
	}
	for _, loc := range defaultLocations {
		if known[loc.DeviceID] {
			continue
		}
		if err := repo.UpsertLocation(ctx, s.DB, loc); err != nil {
			return err
		}
	}
	return nil
}

// defaultLocations is the static cabinet placement catalog.
var defaultLocations = []domain.Location{
	{
		DeviceID: "DTN00872",
		Name:     "Stiger Станция — ТЦ Авиапарк",
		Address:  "Ходынский бульвар, 4, Москва",
		Lat:      55.790278,
		Lng:      37.530556,
		Total:    8,
	},
	{
		DeviceID: "DTN00915",
		Name:     "Stiger Станция — Кофемания Никольская",
		Address:  "Никольская улица, 10, Москва",
		Lat:      55.757500,
		Lng:      37.625278,
		Total:    6,
	},
	{
		DeviceID: "DTN01033",
		Name:     "Stiger Станция — БЦ Белая Площадь",
		Address:  "Лесная улица, 5, Москва",
		Lat:      55.778611,
		Lng:      37.588056,
		Total:    12,
	},
}
