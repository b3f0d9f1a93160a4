// Location and device HTTP handlers.
//
// This file exposes the map and cabinet endpoints:
//   - GET /locations (all stations with availability snapshots)
//   - GET /devices   (live cabinet state by deviceId, proxied)
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/stigerapp/go-rental-backend/internal/gateway/bajie"
	"github.com/stigerapp/go-rental-backend/internal/sysutil"
)

// ListLocations returns all known stations. Availability is refreshed from
// the hardware platform when stale; a dead cabinet degrades to its last
// known snapshot marked offline.
func (h *Handlers) ListLocations(c *gin.Context) {
	locs, err := h.locSvc.List(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, gin.H{"locations": locs})
}

// GetDevice proxies a live cabinet query. Accepts deviceId or cabinetId as
// the query parameter — older storefront builds send the latter.
func (h *Handlers) GetDevice(c *gin.Context) {
	deviceID := strings.TrimSpace(sysutil.FirstNonEmpty(c.Query("deviceId"), c.Query("cabinetId")))
	if deviceID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "deviceId required")
		return
	}

	device, err := h.hardware.QueryDevice(c.Request.Context(), deviceID)
	if err != nil {
		if errors.Is(err, bajie.ErrDeviceUnavailable) {
			fail(c, http.StatusNotFound, ErrCodeDeviceUnavailable, "Устройство недоступно.")
			return
		}
		fail(c, http.StatusBadGateway, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, gin.H{"device": device})
}
