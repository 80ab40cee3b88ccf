package handlers

import (
	"github.com/crowdfund/backend/internal/http/dto"
	"github.com/crowdfund/backend/internal/models"
	"github.com/gofiber/fiber/v2"
)

type MetaHandler struct{}

func NewMetaHandler() *MetaHandler {
	return &MetaHandler{}
}

type MetaOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

var sortOptions = []MetaOption{
	{ID: "newest", Label: "Newest First"},
	{ID: "oldest", Label: "Oldest First"},
	{ID: "target", Label: "Highest Target"},
	{ID: "progress", Label: "Most Progress"},
}

var statusOptions = []MetaOption{
	{ID: "all", Label: "All"},
	{ID: "active", Label: "Active"},
	{ID: "completed", Label: "Completed"},
}

func (h *MetaHandler) GetCategories(c *fiber.Ctx) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: models.Categories})
}

// GetFilters lists the sort keys and status filters the listing view accepts.
func (h *MetaHandler) GetFilters(c *fiber.Ctx) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: fiber.Map{
		"sort":   sortOptions,
		"status": statusOptions,
	}})
}
