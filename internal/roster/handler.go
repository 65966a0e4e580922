package roster

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hubatlas/backend/internal/auth"
	"github.com/hubatlas/backend/internal/models"
	"github.com/hubatlas/backend/internal/permissions"
	"github.com/hubatlas/backend/pkg/response"
)

// Handler handles role assignment HTTP endpoints.
type Handler struct {
	repo     *Repository
	resolver *permissions.Resolver
}

// NewHandler creates a roster handler.
func NewHandler(repo *Repository, resolver *permissions.Resolver) *Handler {
	return &Handler{repo: repo, resolver: resolver}
}

// AssignRequest is the body for POST /orgs/:id/roles.
type AssignRequest struct {
	UserID   string          `json:"user_id" binding:"required,uuid"`
	RoleName models.RoleName `json:"role_name" binding:"required"`
}

// Assign grants a role at an org. Only an admin of the org (directly or via
// an ancestor) may grant roles there.
func (h *Handler) Assign(c *gin.Context) {
	orgID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid org id")
		return
	}
	var body AssignRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "user_id and role_name are required")
		return
	}
	if body.RoleName != models.RoleAdmin && body.RoleName != models.RoleEditor && body.RoleName != models.RoleUser {
		response.BadRequest(c, "unknown role name")
		return
	}
	targetUser, err := uuid.Parse(body.UserID)
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}

	ctx := c.Request.Context()
	callerID := c.MustGet(auth.ContextUserID).(uuid.UUID)
	assignments, err := h.repo.AssignmentsForUser(ctx, callerID)
	if err != nil {
		response.Internal(c, "failed to load role assignments")
		return
	}
	d, err := h.resolver.CheckRole(ctx, assignments, orgID, models.RoleAdmin)
	if err != nil {
		response.Internal(c, "permission check failed")
		return
	}
	if !d.Granted {
		response.Forbidden(c, "admin role required for this org")
		return
	}

	if err := h.repo.Assign(ctx, targetUser, body.RoleName, orgID); err != nil {
		response.Internal(c, "failed to assign role")
		return
	}
	response.Created(c, gin.H{"user_id": targetUser, "role_name": body.RoleName, "org_id": orgID})
}
