package handler

import (
	"github.com/gofiber/fiber/v2"

	"crosspost-connect/internal/domain/entity"
	"crosspost-connect/internal/domain/repository"
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 500
)

type LogHandler struct {
	logRepo repository.APILogRepository
}

func NewLogHandler(logRepo repository.APILogRepository) *LogHandler {
	return &LogHandler{logRepo: logRepo}
}

// GetLogs godoc
// @Summary List provider call logs
// @Tags logs
// @Produce json
// @Param limit query int false "Max entries (default 50)"
// @Param provider query string false "Filter by provider"
// @Success 200 {object} entity.APIResponse
// @Router /api/v1/logs [get]
func (h *LogHandler) GetLogs(c *fiber.Ctx) error {
	ctx := c.UserContext()

	limit := c.QueryInt("limit", defaultLogLimit)
	if limit <= 0 || limit > maxLogLimit {
		limit = defaultLogLimit
	}

	var (
		logs []*entity.APILog
		err  error
	)
	if p := c.Query("provider"); p != "" {
		provider, perr := entity.ParseProvider(p)
		if perr != nil {
			return c.Status(fiber.StatusBadRequest).JSON(
				entity.NewErrorResponse("BAD_REQUEST", perr.Error()),
			)
		}
		logs, err = h.logRepo.FindByProvider(ctx, provider, limit)
	} else {
		logs, err = h.logRepo.FindRecent(ctx, limit)
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(
			entity.NewErrorResponse("INTERNAL_ERROR", err.Error()),
		)
	}

	return c.JSON(entity.NewSuccessResponse(logs, "Logs retrieved successfully"))
}
