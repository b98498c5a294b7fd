package api

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/napassornsp/chat-new/models"
	"github.com/napassornsp/chat-new/services"
	"github.com/napassornsp/chat-new/utils"
)

// parseSelectQuery extracts paging and ordering controls from the query
// string. Every remaining parameter becomes an equality filter.
func parseSelectQuery(c *gin.Context) services.SelectQuery {
	query := services.SelectQuery{
		Filters:  map[string]interface{}{},
		OrderAsc: c.DefaultQuery("_order_asc", "1") == "1",
		OrderCol: c.Query("_order_col"),
	}
	query.Limit, _ = strconv.Atoi(c.Query("_limit"))
	query.Offset, _ = strconv.Atoi(c.Query("_offset"))

	for key, values := range c.Request.URL.Query() {
		if key == "_limit" || key == "_offset" || key == "_order_col" || key == "_order_asc" {
			continue
		}
		if len(values) > 0 {
			query.Filters[key] = values[0]
		}
	}
	return query
}

// TableSelectHandler lists rows from a registry table.
// GET /db/:table
func (h *APIHandler) TableSelectHandler(c *gin.Context) {
	rows, err := h.gateway.Select(currentUser(c), c.Param("table"), parseSelectQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows": rows})
}

type insertRequest struct {
	Values json.RawMessage `json:"values"`
}

// TableInsertHandler creates rows. The values field accepts one object
// or an array of objects.
// POST /db/:table
func (h *APIHandler) TableInsertHandler(c *gin.Context) {
	var req insertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendJSONError(c, http.StatusBadRequest, "Invalid request format.", err)
		return
	}
	if len(req.Values) == 0 {
		respondError(c, services.ErrMissingValues)
		return
	}

	var batch []map[string]interface{}
	if err := json.Unmarshal(req.Values, &batch); err != nil {
		var single map[string]interface{}
		if err := json.Unmarshal(req.Values, &single); err != nil {
			utils.SendJSONError(c, http.StatusBadRequest, "values must be an object or an array of objects.", err)
			return
		}
		batch = []map[string]interface{}{single}
	}

	rows, err := h.gateway.Insert(currentUser(c), c.Param("table"), batch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"rows": rows})
}

type updateRequest struct {
	Values  map[string]interface{} `json:"values"`
	Filters map[string]interface{} `json:"filters"`
}

// TableUpdateHandler applies values to every row matching the filters.
// PATCH /db/:table
func (h *APIHandler) TableUpdateHandler(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendJSONError(c, http.StatusBadRequest, "Invalid request format.", err)
		return
	}
	if req.Values == nil {
		req.Values = map[string]interface{}{}
	}
	if req.Filters == nil {
		req.Filters = map[string]interface{}{}
	}

	rows, err := h.gateway.Update(currentUser(c), c.Param("table"), req.Filters, req.Values)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows": rows})
}

// TableDeleteHandler removes every row matching the query parameter
// filters.
// DELETE /db/:table
func (h *APIHandler) TableDeleteHandler(c *gin.Context) {
	filters := map[string]interface{}{}
	for key, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			filters[key] = values[0]
		}
	}

	rows, err := h.gateway.Delete(currentUser(c), c.Param("table"), filters)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows": rows})
}

// ListNotificationsHandler returns the caller's notifications, newest
// first, as a bare array.
// GET /db/notifications
func (h *APIHandler) ListNotificationsHandler(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		respondError(c, services.ErrUnauthorized)
		return
	}
	notifications, err := h.notificationRepo.ListByUser(user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	rows := make([]map[string]interface{}, len(notifications))
	for i, n := range notifications {
		rows[i] = n.Serialize()
	}
	c.JSON(http.StatusOK, rows)
}

type notificationRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// CreateNotificationHandler records a notification for the caller.
// POST /db/notifications
func (h *APIHandler) CreateNotificationHandler(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		respondError(c, services.ErrUnauthorized)
		return
	}
	var req notificationRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		utils.SendJSONError(c, http.StatusBadRequest, "Invalid request format.", err)
		return
	}
	notification := &models.Notification{UserID: user.ID, Title: req.Title, Body: req.Body}
	if err := h.notificationRepo.Create(notification); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, notification.Serialize())
}

// RealtimeHandler streams change events over server-sent events. Each
// committed insert, update and delete arrives as one db_change event.
// GET /realtime
func (h *APIHandler) RealtimeHandler(c *gin.Context) {
	events, cancel := h.hub.Subscribe()
	defer cancel()

	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	log.Printf("INFO: [Realtime] Client %s connected.", c.ClientIP())
	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent("db_change", event)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
	log.Printf("INFO: [Realtime] Client %s disconnected.", c.ClientIP())
}
