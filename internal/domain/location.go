package domain

import "time"

// Location is a rental cabinet as shown on the map: static placement data
// plus the last known availability snapshot from the hardware platform.
type Location struct {
	DeviceID  string    `json:"id"        gorm:"type:varchar(64);primaryKey"`
	Name      string    `json:"name"      gorm:"type:varchar(128);not null"`
	Address   string    `json:"address"   gorm:"type:varchar(255)"`
	Lat       float64   `json:"lat"       gorm:"not null"`
	Lng       float64   `json:"lng"       gorm:"not null"`
	Available int       `json:"available"`
	Total     int       `json:"total"`
	Online    bool      `json:"online"`
	CheckedAt time.Time `json:"checked_at"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// TableName implements the GORM tabler interface.
func (Location) TableName() string { return "locations" }
