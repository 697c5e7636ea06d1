// Package web provides HTTP request and response types for the workflow API.
package web

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/mono-send/send-smartly/pkg/models"
	"github.com/mono-send/send-smartly/pkg/services"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string            `json:"status"`
	Message   string            `json:"message"`
	Checkers  map[string]string `json:"checkers"`
	Timestamp time.Time         `json:"timestamp"`
}

// parseListWorkflowsRequest reads page, page_size and status from the query string.
func parseListWorkflowsRequest(c fiber.Ctx) (services.ListWorkflowsRequest, error) {
	var req services.ListWorkflowsRequest

	var err error

	if req.Page, err = queryInt(c, "page"); err != nil {
		return req, err
	}

	if req.PageSize, err = queryInt(c, "page_size"); err != nil {
		return req, err
	}

	if status := c.Query("status"); status != "" {
		s := models.WorkflowStatus(status)
		req.Status = &s
	}

	req.SortBy = c.Query("sort_by")
	req.SortOrder = c.Query("sort_order")

	return req, nil
}

// queryInt parses an optional integer query parameter; absent means 0.
func queryInt(c fiber.Ctx, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &queryError{name: name, value: raw}
	}

	return value, nil
}

type queryError struct {
	name  string
	value string
}

func (e *queryError) Error() string {
	return e.name + " must be an integer, got '" + e.value + "'"
}
