package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"mapro-backend/internal/domain"
	"mapro-backend/internal/service"
)

type categoryResponse struct {
	ID      int64            `json:"id"`
	Name    string           `json:"name"`
	Options []optionResponse `json:"options"`
}

type optionResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func (h *Handler) listCategories(c *gin.Context) {
	categories, err := h.prefs.ListCategories(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]categoryResponse, len(categories))
	for i := range categories {
		options := make([]optionResponse, len(categories[i].Options))
		for j := range categories[i].Options {
			options[j] = optionResponse{
				ID:   categories[i].Options[j].ID,
				Name: categories[i].Options[j].Name,
			}
		}
		resp[i] = categoryResponse{
			ID:      categories[i].ID,
			Name:    categories[i].Name,
			Options: options,
		}
	}
	c.JSON(http.StatusOK, resp)
}

// getPreferences returns the ids of the options the caller currently has
// selected. Deselected history rows are filtered here, not in the engine.
func (h *Handler) getPreferences(c *gin.Context) {
	userID, _ := identityFromContext(c)

	prefs, err := h.prefs.GetUserPreferences(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	selected := make([]int64, 0, len(prefs))
	for i := range prefs {
		if prefs[i].IsSelected {
			selected = append(selected, prefs[i].OptionID)
		}
	}
	c.JSON(http.StatusOK, gin.H{"optionIds": selected})
}

func (h *Handler) savePreferences(c *gin.Context) {
	var optionIDs []int64
	if err := c.ShouldBindJSON(&optionIDs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, username := identityFromContext(c)

	if err := h.prefs.SavePreferences(c.Request.Context(), userID, optionIDs); err != nil {
		if errors.Is(err, service.ErrOptionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "preference option not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.audit(c, userID, username, domain.ActionUpdate, "user preferences updated")

	c.JSON(http.StatusOK, gin.H{"saved": true})
}
