// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Location
// model backing the cabinet map.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stigerapp/go-rental-backend/internal/domain"
)

// ListLocations returns every known cabinet location.
func ListLocations(ctx context.Context, db *gorm.DB) ([]domain.Location, error) {
	var out []domain.Location
	err := db.WithContext(ctx).Order("name ASC").Find(&out).Error
	return out, err
}

// UpsertLocation inserts or refreshes a cabinet location keyed by device id.
func UpsertLocation(ctx context.Context, db *gorm.DB, loc domain.Location) error {
	loc.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "device_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "address", "lat", "lng",
				"available", "total", "online", "checked_at", "updated_at",
			}),
		}).
		Create(&loc).Error
}

// UpdateLocationAvailability stores a fresh availability snapshot for an
// already-known cabinet. Unknown cabinets are ignored (RowsAffected 0 is
// not an error: the map only shows curated locations).
func UpdateLocationAvailability(ctx context.Context, db *gorm.DB, deviceID string, available, total int, online bool, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.Location{}).
		Where("device_id = ?", deviceID).
		Updates(map[string]any{
			"available":  available,
			"total":      total,
			"online":     online,
			"checked_at": at,
			"updated_at": time.Now().UTC(),
		}).Error
}
