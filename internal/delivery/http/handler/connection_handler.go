package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"crosspost-connect/internal/delivery/http/middleware"
	"crosspost-connect/internal/domain/entity"
	"crosspost-connect/internal/usecase"
)

type ConnectionHandler struct {
	usecase usecase.ConnectionUsecase
	logger  *zap.Logger
}

func NewConnectionHandler(usecase usecase.ConnectionUsecase, logger *zap.Logger) *ConnectionHandler {
	return &ConnectionHandler{
		usecase: usecase,
		logger:  logger,
	}
}

// Authorize godoc
// @Summary Start connecting a provider account
// @Description Stores a single-use state and redirects the browser to the provider consent page.
//
//	Pass redirect=false to receive the URL as JSON instead.
//
// @Tags connections
// @Param provider path string true "Provider (twitter, linkedin)"
// @Param X-User-ID header string true "User ID"
// @Security ApiKeyAuth
// @Param redirect query bool false "Redirect (default true)"
// @Success 302 "Redirect to provider"
// @Success 200 {object} entity.APIResponse
// @Failure 400 {object} entity.APIResponse
// @Router /api/v1/connections/{provider}/authorize [get]
func (h *ConnectionHandler) Authorize(c *fiber.Ctx) error {
	ctx := c.UserContext()

	provider, err := entity.ParseProvider(c.Params("provider"))
	if err != nil {
		return h.fail(c, err)
	}

	userID := middleware.UserID(c)

	authorizeURL, err := h.usecase.BeginAuthorization(ctx, userID, provider)
	if err != nil {
		h.logger.Error("Failed to begin authorization", zap.Error(err))
		return h.fail(c, err)
	}

	if c.QueryBool("redirect", true) {
		h.logger.Info("Redirecting to provider",
			zap.String("user_id", userID),
			zap.String("provider", provider.String()),
		)
		return c.Redirect(authorizeURL, fiber.StatusFound)
	}

	return c.JSON(entity.NewSuccessResponse(fiber.Map{
		"provider":      provider,
		"authorize_url": authorizeURL,
	}, "Authorization URL created"))
}

// Callback godoc
// @Summary OAuth callback
// @Description Endpoint the provider redirects to after the user authorizes.
//
//	Validates and consumes the state, exchanges the code and stores the connection.
//
// @Tags connections
// @Param provider path string true "Provider"
// @Param code query string true "Authorization code"
// @Param state query string true "CSRF state"
// @Success 200 {object} entity.APIResponse
// @Failure 400 {object} entity.APIResponse
// @Failure 502 {object} entity.APIResponse
// @Router /redirect/oauth/{provider} [get]
func (h *ConnectionHandler) Callback(c *fiber.Ctx) error {
	ctx := c.UserContext()

	provider, err := entity.ParseProvider(c.Params("provider"))
	if err != nil {
		return h.fail(c, err)
	}

	// Provider-side denial, e.g. the user pressed cancel
	if oauthErr := c.Query("error"); oauthErr != "" {
		h.logger.Info("Authorization denied by provider",
			zap.String("provider", provider.String()),
			zap.String("error", oauthErr),
		)
		return c.Status(fiber.StatusBadRequest).JSON(
			entity.NewErrorResponse("AUTHORIZATION_DENIED", c.Query("error_description", oauthErr)),
		)
	}

	code := c.Query("code")
	state := c.Query("state")

	h.logger.Info("OAuth callback received",
		zap.String("provider", provider.String()),
		zap.Bool("has_code", code != ""),
		zap.Bool("has_state", state != ""),
	)

	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(
			entity.NewErrorResponse("BAD_REQUEST", "Authorization code is required"),
		)
	}

	conn, err := h.usecase.CompleteAuthorization(ctx, provider, code, state)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(entity.NewSuccessResponse(conn, "Account connected successfully"))
}

// List godoc
// @Summary List connections
// @Description One connection per provider; the most recently created wins.
// @Tags connections
// @Param X-User-ID header string true "User ID"
// @Security ApiKeyAuth
// @Success 200 {object} entity.APIResponse
// @Router /api/v1/connections [get]
func (h *ConnectionHandler) List(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	conns, err := h.usecase.ListConnections(c.UserContext(), userID)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(entity.NewSuccessResponse(conns, "Connections retrieved successfully"))
}

// Token godoc
// @Summary Get a publishable access token
// @Description Returns a token that will not expire within the refresh buffer.
//
//	404 means the account must be connected again.
//
// @Tags connections
// @Param provider path string true "Provider"
// @Param X-User-ID header string true "User ID"
// @Security ApiKeyAuth
// @Success 200 {object} entity.APIResponse
// @Failure 404 {object} entity.APIResponse
// @Router /api/v1/connections/{provider}/token [get]
func (h *ConnectionHandler) Token(c *fiber.Ctx) error {
	provider, err := entity.ParseProvider(c.Params("provider"))
	if err != nil {
		return h.fail(c, err)
	}

	userID := middleware.UserID(c)

	token, err := h.usecase.GetPublishableToken(c.UserContext(), userID, provider)
	if err != nil {
		return h.fail(c, err)
	}

	if token == "" {
		return c.Status(fiber.StatusNotFound).JSON(
			entity.NewErrorResponse("REAUTHORIZATION_REQUIRED", "No usable connection, please connect the account again"),
		)
	}

	return c.JSON(entity.NewSuccessResponse(fiber.Map{
		"provider":     provider,
		"access_token": token,
	}, "Token retrieved successfully"))
}

// Status godoc
// @Summary Check whether a usable connection exists
// @Tags connections
// @Param provider path string true "Provider"
// @Param X-User-ID header string true "User ID"
// @Security ApiKeyAuth
// @Success 200 {object} entity.APIResponse
// @Router /api/v1/connections/{provider}/status [get]
func (h *ConnectionHandler) Status(c *fiber.Ctx) error {
	provider, err := entity.ParseProvider(c.Params("provider"))
	if err != nil {
		return h.fail(c, err)
	}

	userID := middleware.UserID(c)

	connected, err := h.usecase.HasValidConnection(c.UserContext(), userID, provider)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(entity.NewSuccessResponse(fiber.Map{
		"provider":  provider,
		"connected": connected,
	}, "Connection status retrieved"))
}

// Disconnect godoc
// @Summary Disconnect a provider account
// @Tags connections
// @Param provider path string true "Provider"
// @Param X-User-ID header string true "User ID"
// @Security ApiKeyAuth
// @Success 200 {object} entity.APIResponse
// @Router /api/v1/connections/{provider} [delete]
func (h *ConnectionHandler) Disconnect(c *fiber.Ctx) error {
	provider, err := entity.ParseProvider(c.Params("provider"))
	if err != nil {
		return h.fail(c, err)
	}

	userID := middleware.UserID(c)

	if err := h.usecase.Disconnect(c.UserContext(), userID, provider); err != nil {
		return h.fail(c, err)
	}

	return c.JSON(entity.NewSuccessResponse(fiber.Map{
		"provider": provider,
	}, "Account disconnected"))
}

func (h *ConnectionHandler) fail(c *fiber.Ctx, err error) error {
	status, code := errorStatus(err)
	if status >= fiber.StatusInternalServerError {
		h.logger.Error("Connection request failed",
			zap.String("path", c.Path()),
			zap.Error(err),
		)
	}

	message := err.Error()
	var perr *entity.ProviderError
	if errors.As(err, &perr) {
		// Provider bodies can echo request details back; keep them in logs only
		message = perr.Kind.Error()
	}

	return c.Status(status).JSON(entity.NewErrorResponse(code, message))
}

// errorStatus maps domain errors onto HTTP status codes and error codes
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, entity.ErrUnknownProvider), errors.Is(err, entity.ErrProviderDisabled):
		return fiber.StatusNotFound, "PROVIDER_NOT_FOUND"
	case errors.Is(err, entity.ErrStateNotFound):
		return fiber.StatusBadRequest, "STATE_NOT_FOUND"
	case errors.Is(err, entity.ErrStateExpired):
		return fiber.StatusBadRequest, "STATE_EXPIRED"
	case errors.Is(err, entity.ErrStateAlreadyConsumed):
		return fiber.StatusBadRequest, "STATE_ALREADY_CONSUMED"
	case errors.Is(err, entity.ErrProviderMismatch):
		return fiber.StatusBadRequest, "PROVIDER_MISMATCH"
	case errors.Is(err, entity.ErrMissingCodeVerifier):
		return fiber.StatusBadRequest, "INVALID_STATE"
	case errors.Is(err, entity.ErrNetworkTimeout):
		return fiber.StatusGatewayTimeout, "PROVIDER_TIMEOUT"
	case errors.Is(err, entity.ErrTokenExchangeFailed):
		return fiber.StatusBadGateway, "TOKEN_EXCHANGE_FAILED"
	case errors.Is(err, entity.ErrRefreshFailed):
		return fiber.StatusBadGateway, "REFRESH_FAILED"
	case errors.Is(err, entity.ErrIdentityFetchFailed):
		return fiber.StatusBadGateway, "IDENTITY_FETCH_FAILED"
	default:
		return fiber.StatusInternalServerError, "INTERNAL_ERROR"
	}
}
