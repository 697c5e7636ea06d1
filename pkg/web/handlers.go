package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/mono-send/send-smartly/pkg/models"
	"github.com/mono-send/send-smartly/pkg/services"
)

type APIHandlers struct {
	workflowService *services.Workflow
	stepService     *services.Steps
	versionService  *services.Versions
	lookupService   *services.Lookups
	validator       *validator.Validate
}

func NewAPIHandlers(
	workflowService *services.Workflow,
	stepService *services.Steps,
	versionService *services.Versions,
	lookupService *services.Lookups,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		workflowService: workflowService,
		stepService:     stepService,
		versionService:  versionService,
		lookupService:   lookupService,
		validator:       validator,
	}
}

// RegisterRoutes mounts every workflow builder endpoint on router.
func RegisterRoutes(router fiber.Router, h *APIHandlers) {
	w := router.Group("/workflows")
	w.Get("/", h.GetWorkflows)
	w.Post("/", h.CreateWorkflow)
	w.Get("/:id", h.GetWorkflow)
	w.Patch("/:id", h.PatchWorkflow)
	w.Delete("/:id", h.DeleteWorkflow)
	w.Post("/:id/save", h.SaveWorkflow)
	w.Post("/:id/activate", h.ActivateWorkflow)
	w.Get("/:id/versions", h.GetVersions)

	w.Post("/:id/steps", h.CreateStep)
	w.Put("/:id/steps/reorder", h.ReorderSteps)
	w.Patch("/:id/steps/:stepId", h.UpdateStep)
	w.Delete("/:id/steps/:stepId", h.DeleteStep)

	router.Get("/segments", h.GetSegments)
	router.Get("/contact-categories", h.GetContactCategories)
	router.Get("/senders", h.GetSenders)
	router.Get("/templates", h.GetTemplates)

	router.Get("/health", h.HealthCheck)
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	req, err := parseListWorkflowsRequest(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	result, err := h.workflowService.ListWorkflows(c.Context(), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	workflow, err := h.workflowService.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, ok := h.workflowService.HealthCheck(c.Context())

	response := HealthResponse{
		Status:    "unhealthy",
		Message:   "Send Smartly API is unhealthy",
		Checkers:  map[string]string{"repository": repositoryCheck},
		Timestamp: time.Now().UTC(),
	}
	httpStatus := http.StatusInternalServerError

	if ok {
		response.Status = "healthy"
		response.Message = "Send Smartly API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(response)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req models.CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.workflowService.Create(c.Context(), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) PatchWorkflow(c fiber.Ctx) error {
	var patch models.WorkflowPatch
	if err := c.Bind().JSON(&patch); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(patch); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.workflowService.Patch(c.Context(), c.Params("id"), patch)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	if err := h.workflowService.Delete(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) SaveWorkflow(c fiber.Ctx) error {
	saved, err := h.versionService.Save(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(saved)
}

func (h *APIHandlers) ActivateWorkflow(c fiber.Ctx) error {
	raw := c.Query("version_number")
	if raw == "" {
		return badRequest(c, "version_number query parameter is required")
	}

	number, err := strconv.Atoi(raw)
	if err != nil {
		return badRequest(c, "version_number must be a positive integer")
	}

	activated, err := h.versionService.Activate(c.Context(), c.Params("id"), number)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(activated)
}

func (h *APIHandlers) GetVersions(c fiber.Ctx) error {
	versions, err := h.versionService.List(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(models.ListResponse[*models.WorkflowVersion]{Data: versions})
}

func (h *APIHandlers) CreateStep(c fiber.Ctx) error {
	var req models.CreateStepRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	step, err := h.stepService.Create(c.Context(), c.Params("id"), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(step)
}

func (h *APIHandlers) UpdateStep(c fiber.Ctx) error {
	var req models.UpdateStepRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	step, err := h.stepService.Update(c.Context(), c.Params("id"), c.Params("stepId"), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(step)
}

func (h *APIHandlers) DeleteStep(c fiber.Ctx) error {
	remaining, err := h.stepService.Delete(c.Context(), c.Params("id"), c.Params("stepId"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(remaining)
}

func (h *APIHandlers) ReorderSteps(c fiber.Ctx) error {
	var req models.ReorderRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	steps, err := h.stepService.Reorder(c.Context(), c.Params("id"), req.Steps)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(steps)
}

func (h *APIHandlers) GetSegments(c fiber.Ctx) error {
	segments, err := h.lookupService.Segments(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(models.ListResponse[models.Segment]{Data: segments})
}

func (h *APIHandlers) GetContactCategories(c fiber.Ctx) error {
	categories, err := h.lookupService.ContactCategories(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(models.ListResponse[models.ContactCategory]{Data: categories})
}

func (h *APIHandlers) GetSenders(c fiber.Ctx) error {
	senders, err := h.lookupService.Senders(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(models.ListResponse[models.Sender]{Data: senders})
}

func (h *APIHandlers) GetTemplates(c fiber.Ctx) error {
	templates, err := h.lookupService.Templates(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(models.ListResponse[models.Template]{Data: templates})
}
