// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// for conditional responses (ETag generation on order listings) and for the
// operator-facing reconciliation counters.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/stigerapp/go-rental-backend/internal/domain"
)

// OrdersStats returns aggregate metadata for a user's orders: the total
// number of rows and the maximum UpdatedAt timestamp among those rows.
// When the user has no orders, the returned count is 0 and maxUpdatedAt
// is nil.
func OrdersStats(ctx context.Context, db *gorm.DB, userID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Order{}).Where("user_id = ?", userID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

// CountOrdersByStatus returns how many orders currently sit in each status.
// Exposed to operators through the health/reconciliation surface: a growing
// "active" backlog with no settlements is the first sign that battery-return
// callbacks are not arriving.
func CountOrdersByStatus(ctx context.Context, db *gorm.DB) (map[domain.OrderStatus]int64, error) {
	var rows []struct {
		Status domain.OrderStatus
		N      int64
	}
	err := db.WithContext(ctx).
		Model(&domain.Order{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[domain.OrderStatus]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}
