package handlers

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/ahmetcoskunkizilkaya/modengine/internal/dto"
	"github.com/ahmetcoskunkizilkaya/modengine/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/modengine/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ModerationHandler struct {
	moderationService *services.ModerationService
}

func NewModerationHandler(moderationService *services.ModerationService) *ModerationHandler {
	return &ModerationHandler{moderationService: moderationService}
}

func (h *ModerationHandler) CreateReport(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	var req dto.CreateReportRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	res, err := h.moderationService.SubmitReport(c.UserContext(), services.SubmitReportInput{
		ReporterID:  userID,
		ContentType: req.ContentType,
		ContentID:   req.ContentID,
		Reason:      req.Reason,
		Details:     req.Details,
		ContentURL:  req.ContentURL,
	})
	if err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.ReportResponse{
		Report:     res.Report,
		Score:      res.Score,
		AutoHidden: res.AutoHidden,
	})
}

func (h *ModerationHandler) AnalyzeText(c *fiber.Ctx) error {
	var req dto.AnalyzeTextRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	verdict, err := h.moderationService.AnalyzeText(req.Text, req.ContentType)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(verdict)
}

// ScreenContent is called right after the author publishes.
func (h *ModerationHandler) ScreenContent(c *fiber.Ctx) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	var req dto.ScreenContentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	verdict, err := h.moderationService.ScreenContent(c.UserContext(), services.ScreenInput{
		AuthorID:    userID,
		ContentType: req.ContentType,
		ContentID:   req.ContentID,
		ContentURL:  req.ContentURL,
		Text:        req.Text,
	})
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(verdict)
}

func (h *ModerationHandler) ListReports(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	filter := services.ReportFilter{
		ContentType: c.Query("content_type"),
		ContentID:   c.Query("content_id"),
		Status:      c.Query("status"),
		Limit:       limit,
		Offset:      offset,
	}
	if raw := c.Query("reporter_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: true, Message: "Invalid reporter ID",
			})
		}
		filter.ReporterID = &id
	}

	reports, total, err := h.moderationService.ListReports(c.UserContext(), filter)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(dto.ListReportsResponse{
		Reports: reports,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	})
}

func (h *ModerationHandler) ResolveReport(c *fiber.Ctx) error {
	moderatorID, ok := c.Locals("moderator_id").(uuid.UUID)
	if !ok {
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
			Error: true, Message: "A moderator account is required to resolve reports",
		})
	}

	reportID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid report ID",
		})
	}

	var req dto.ResolveReportRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	report, err := h.moderationService.ResolveReport(c.UserContext(), moderatorID, reportID, req.Status, req.Note)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(report)
}

func (h *ModerationHandler) ApplyReport(c *fiber.Ctx) error {
	reportID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid report ID",
		})
	}

	out, err := h.moderationService.ApplyReport(c.UserContext(), reportID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"applied":      out.Applied,
		"newly_hidden": out.NewlyHidden,
		"score":        out.Score,
	})
}

func (h *ModerationHandler) GetScore(c *fiber.Ctx) error {
	score, err := h.moderationService.GetScore(c.UserContext(), c.Params("type"), c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(score)
}

func (h *ModerationHandler) ClearAutoHide(c *fiber.Ctx) error {
	actorID, _ := c.Locals("moderator_id").(uuid.UUID)
	score, err := h.moderationService.ClearAutoHide(c.UserContext(), actorID, c.Params("type"), c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(score)
}

func (h *ModerationHandler) ResetScore(c *fiber.Ctx) error {
	actorID, _ := c.Locals("moderator_id").(uuid.UUID)

	var req dto.ResetScoreRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: true, Message: "Invalid request body",
			})
		}
	}

	score, err := h.moderationService.ResetScore(c.UserContext(), actorID, c.Params("type"), c.Params("id"), req.Reason)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(score)
}

func (h *ModerationHandler) SiteScale(c *fiber.Ctx) error {
	scale, err := h.moderationService.CurrentSiteScale(c.UserContext())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(dto.SiteScaleResponse{SiteScale: scale})
}

func (h *ModerationHandler) RecomputeTrust(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid user ID",
		})
	}

	profile, err := h.moderationService.RecomputeTrust(c.UserContext(), userID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(profile)
}

// errorResponse maps engine errors onto status codes. Server-side failures
// never leak their details.
func errorResponse(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrValidation):
		status = fiber.StatusBadRequest
	case errors.Is(err, services.ErrSelfReport):
		status = fiber.StatusUnprocessableEntity
	case errors.Is(err, services.ErrDuplicateReport), errors.Is(err, services.ErrAlreadyResolved):
		status = fiber.StatusConflict
	case errors.Is(err, services.ErrForbidden):
		status = fiber.StatusForbidden
	case errors.Is(err, services.ErrReportNotFound),
		errors.Is(err, services.ErrScoreNotFound),
		errors.Is(err, services.ErrContentNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, services.ErrStorageUnavailable):
		status = fiber.StatusServiceUnavailable
	}

	if status >= 500 {
		slog.Error("moderation request failed",
			"request_id", c.GetRespHeader(fiber.HeaderXRequestID),
			"action", c.Route().Path,
			"error", err.Error(),
		)
		return c.Status(status).JSON(dto.ErrorResponse{
			Error: true, Message: "Moderation service unavailable",
		})
	}
	return c.Status(status).JSON(dto.ErrorResponse{
		Error: true, Message: err.Error(),
	})
}
