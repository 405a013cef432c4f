package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/khepriforge/auth-service/internal/core/domain"
	"github.com/khepriforge/auth-service/internal/core/port"
	"github.com/khepriforge/auth-service/internal/transport/http/middleware"
	"github.com/khepriforge/auth-service/internal/usecase"
)

const (
	defaultAuditPageSize = 50
	maxAuditPageSize     = 200
)

// AuditHandler exposes the activity page read path.
type AuditHandler struct {
	audit *usecase.AuditRecorder
}

// NewAuditHandler constructs AuditHandler.
func NewAuditHandler(audit *usecase.AuditRecorder) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// RegisterRoutes binds audit routes. The group must already require a session.
func (h *AuditHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/audit", h.list)
}

// List godoc
// @Summary List audit log entries
// @Description Returns audit entries, newest first. Non-admin accounts only see their own activity.
// @Tags Audit
// @Produce json
// @Param limit query int false "Page size (max 200)"
// @Param offset query int false "Page offset"
// @Param action query string false "Filter by action (LOGIN, CREATE, UPDATE, DELETE)"
// @Param user_id query string false "Filter by account (admin only)"
// @Success 200 {object} AuditListResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/audit [get]
func (h *AuditHandler) list(c *gin.Context) {
	accountID, ok := middleware.GetAuthenticatedAccountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	filter := port.AuditFilter{
		Limit:  defaultAuditPageSize,
		Offset: 0,
	}

	if raw := c.Query("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 {
			if limit > maxAuditPageSize {
				limit = maxAuditPageSize
			}
			filter.Limit = limit
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if offset, err := strconv.Atoi(raw); err == nil && offset >= 0 {
			filter.Offset = offset
		}
	}
	if raw := c.Query("action"); raw != "" {
		action := domain.AuditAction(raw)
		switch action {
		case domain.AuditActionLogin, domain.AuditActionCreate, domain.AuditActionUpdate, domain.AuditActionDelete:
			filter.Action = &action
		default:
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "unknown action filter"))
			return
		}
	}

	claims, _ := middleware.GetSessionClaims(c)
	isAdmin := claims != nil && claims.Role == domain.RoleAdmin

	if isAdmin {
		if userID := c.Query("user_id"); userID != "" {
			filter.UserID = &userID
		}
	} else {
		// Non-admin accounts are scoped to their own trail regardless of
		// the requested filter.
		filter.UserID = &accountID
	}

	entries, err := h.audit.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to list audit entries"))
		return
	}

	payload := make([]AuditEntryPayload, 0, len(entries))
	for _, entry := range entries {
		payload = append(payload, newAuditEntryPayload(entry))
	}

	c.JSON(http.StatusOK, AuditListResponse{
		Entries: payload,
		Total:   len(payload),
	})
}
