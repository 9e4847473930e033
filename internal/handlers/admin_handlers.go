package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/visioncraft/storefront/internal/audit"
)

//
// --- Settings (Admin) ---
//

func (h *Handlers) GetSettings(c *gin.Context) {
	values, err := h.Settings.Get(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, values)
}

// UpdateSettings accepts a flat JSON object. Values are stored as strings,
// so {"emailNotifications": false} is kept as "false".
func (h *Handlers) UpdateSettings(c *gin.Context) {
	// 1. --- Bind JSON ---
	var input map[string]interface{}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// 2. --- Stringify ---
	values := make(map[string]string, len(input))
	for k, v := range input {
		s, err := settingString(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid value for %s: %v", k, err)})
			return
		}
		values[k] = s
	}

	// 3. --- Save ---
	if err := h.Settings.Set(c.Request.Context(), values); err != nil {
		h.respondError(c, err)
		return
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	h.record(c, audit.Event{Action: audit.ActionSettingsUpdated, EntityID: "settings", Data: map[string]interface{}{"keys": keys}})

	updated, err := h.Settings.Get(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func settingString(v interface{}) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case bool:
		return strconv.FormatBool(val), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("must be a string, number or boolean")
	}
}

//
// --- Dashboard (Admin) ---
//

func (h *Handlers) GetDashboardStats(c *gin.Context) {
	stats, err := h.Stats.Dashboard(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetSalesChart serves ?period=7d|30d|3m. Unknown periods fall back to 7d.
func (h *Handlers) GetSalesChart(c *gin.Context) {
	points, err := h.Stats.SalesChart(c.Request.Context(), c.DefaultQuery("period", "7d"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, points)
}
