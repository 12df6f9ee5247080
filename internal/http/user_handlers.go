package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"mapro-backend/internal/domain"
	"mapro-backend/internal/service"
)

type nameUpdateRequest struct {
	Name string `json:"name" binding:"required"`
}

type userResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

type auditRecordResponse struct {
	ID         string `json:"id"`
	UserID     int64  `json:"userId"`
	Username   string `json:"username"`
	ActionType string `json:"actionType"`
	Detail     string `json:"detail"`
	CreatedAt  string `json:"createdAt"`
}

func (h *Handler) updateUserName(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	var req nameUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.UpdateUserName(c.Request.Context(), id, req.Name)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.audit(c, user.ID, user.Username, domain.ActionUpdate, "user profile updated")

	c.JSON(http.StatusOK, userResponse{
		ID:       user.ID,
		Username: user.Username,
		Name:     user.Name,
	})
}

// getLogs reads a page of the caller's audit trail. An explicit username
// or userId query overrides the token identity; pages beyond the end come
// back empty, never as an error.
func (h *Handler) getLogs(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "0"))
	if err != nil || page < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page"})
		return
	}
	size, err := strconv.Atoi(c.DefaultQuery("size", "10"))
	if err != nil || size <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid size"})
		return
	}
	if size > service.MaxLogPageSize {
		size = service.MaxLogPageSize
	}

	_, ctxUsername := identityFromContext(c)

	var records []domain.AuditRecord
	switch {
	case c.Query("userId") != "":
		userID, err := strconv.ParseInt(c.Query("userId"), 10, 64)
		if err != nil || userID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid userId"})
			return
		}
		records, err = h.activity.GetLogsByUserID(c.Request.Context(), userID, page, size)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	case c.Query("username") != "":
		records, err = h.activity.GetLogsByUsername(c.Request.Context(), c.Query("username"), page, size)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	default:
		records, err = h.activity.GetLogsByUsername(c.Request.Context(), ctxUsername, page, size)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	resp := make([]auditRecordResponse, len(records))
	for i := range records {
		resp[i] = auditRecordResponse{
			ID:         records[i].ID,
			UserID:     records[i].UserID,
			Username:   records[i].Username,
			ActionType: records[i].ActionType,
			Detail:     records[i].Detail,
			CreatedAt:  records[i].CreatedAt.Format(time.RFC3339),
		}
	}
	c.JSON(http.StatusOK, gin.H{"page": page, "size": size, "records": resp})
}

func (h *Handler) archiveLogs(c *gin.Context) {
	location, err := h.activity.Archive(c.Request.Context())
	if err != nil {
		if errors.Is(err, service.ErrArchiveDisabled) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "archive storage not configured"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"location": location})
}

type archiveObjectResponse struct {
	Key          string `json:"key"`
	Size         int64  `json:"size"`
	LastModified string `json:"lastModified,omitempty"`
}

// listArchives returns the archive objects written so far.
func (h *Handler) listArchives(c *gin.Context) {
	objects, err := h.activity.ListArchives(c.Request.Context())
	if err != nil {
		if errors.Is(err, service.ErrArchiveDisabled) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "archive storage not configured"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]archiveObjectResponse, len(objects))
	for i := range objects {
		resp[i] = archiveObjectResponse{
			Key:  objects[i].Key,
			Size: objects[i].Size,
		}
		if objects[i].LastModified != nil {
			resp[i].LastModified = objects[i].LastModified.Format(time.RFC3339)
		}
	}
	c.JSON(http.StatusOK, gin.H{"archives": resp})
}
