package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/khepriforge/auth-service/internal/infra/security"
	"github.com/khepriforge/auth-service/internal/infra/telemetry"
	"github.com/khepriforge/auth-service/internal/transport/http/middleware"
	"github.com/khepriforge/auth-service/internal/usecase"
)

// AuthHandler exposes the login endpoint.
type AuthHandler struct {
	auth     *usecase.AuthService
	sessions *security.SessionIssuer
	metrics  *telemetry.Provider
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth *usecase.AuthService, sessions *security.SessionIssuer, metrics *telemetry.Provider) *AuthHandler {
	return &AuthHandler{auth: auth, sessions: sessions, metrics: metrics}
}

// RegisterRoutes binds authentication routes, applying optional middleware ahead of handlers.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, loginMiddlewares ...gin.HandlerFunc) {
	if len(loginMiddlewares) > 0 {
		chain := append([]gin.HandlerFunc{}, loginMiddlewares...)
		chain = append(chain, h.login)
		r.POST("/login", chain...)
	} else {
		r.POST("/login", h.login)
	}
}

// Login godoc
// @Summary Authenticate with email and password
// @Description Verifies credentials, enforces the progressive lockout policy, and mints a session token.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request payload"
// @Success 200 {object} LoginResponse
// @Failure 401 {object} LoginFailureResponse
// @Failure 403 {object} LoginFailureResponse
// @Failure 423 {object} LoginFailureResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}

	identity, err := h.auth.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		loginErr, ok := usecase.AsLoginError(err)
		if !ok {
			c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "authentication failed"))
			return
		}

		response := LoginFailureResponse{
			Error:             loginErr.Message,
			RemainingAttempts: loginErr.RemainingAttempts,
			TraceID:           middleware.GetTraceID(c),
		}

		switch loginErr.Kind {
		case usecase.LoginErrorLocked:
			h.metrics.CountLoginAttempt("locked")
			c.JSON(http.StatusLocked, response)
		case usecase.LoginErrorSuspended:
			h.metrics.CountLoginAttempt("suspended")
			c.JSON(http.StatusForbidden, response)
		default:
			h.metrics.CountLoginAttempt("invalid")
			c.JSON(http.StatusUnauthorized, response)
		}
		return
	}

	token, err := h.sessions.Issue(*identity)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to issue session"))
		return
	}

	h.metrics.CountLoginAttempt("success")
	c.JSON(http.StatusOK, LoginResponse{
		Token: token,
		User:  newAccountSummary(*identity),
	})
}
