package requests

import (
	"context"
	"crypto/subtle"
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hubatlas/backend/internal/apperr"
	"github.com/hubatlas/backend/internal/auth"
	"github.com/hubatlas/backend/internal/models"
	"github.com/hubatlas/backend/internal/orgs"
	"github.com/hubatlas/backend/internal/permissions"
	"github.com/hubatlas/backend/pkg/response"
)

// AssignmentSource loads a principal's role assignments. Implemented by the
// roster repository.
type AssignmentSource interface {
	AssignmentsForUser(ctx context.Context, userID uuid.UUID) ([]models.RoleAssignment, error)
}

// Escalation notifies reviewers of a pending request. Implemented by the
// notification escalator.
type Escalation interface {
	Notify(ctx context.Context, req *models.UpdateRequest) error
}

// NotificationLogSource lists the recorded notification attempts for a request.
type NotificationLogSource interface {
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]models.NotificationLog, error)
}

// Handler handles update request HTTP endpoints.
type Handler struct {
	dispatcher *Dispatcher
	resolver   *permissions.Resolver
	walker     *orgs.Walker
	chains     orgs.ChainSource
	roster     AssignmentSource
	repo       RequestStore
	escalator  Escalation
	logs       NotificationLogSource
	logger     *zap.Logger
}

// NewHandler creates a requests handler.
func NewHandler(dispatcher *Dispatcher, resolver *permissions.Resolver, walker *orgs.Walker,
	chains orgs.ChainSource, rosterRepo AssignmentSource, repo RequestStore,
	escalator Escalation, logs NotificationLogSource, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		dispatcher: dispatcher,
		resolver:   resolver,
		walker:     walker,
		chains:     chains,
		roster:     rosterRepo,
		repo:       repo,
		escalator:  escalator,
		logs:       logs,
		logger:     logger,
	}
}

// SubmitRequest is the body for POST /requests.
type SubmitRequest struct {
	ID       string             `json:"id" binding:"required,uuid"`
	Kind     models.RequestKind `json:"type" binding:"required"`
	RegionID int64              `json:"region_id" binding:"required"`
	Payload  json.RawMessage    `json:"payload" binding:"required"`
}

func respondError(c *gin.Context, err error, fallback string) {
	switch {
	case apperr.IsNotFound(err):
		response.NotFound(c, err.Error())
	case apperr.IsInvalidState(err):
		response.Unprocessable(c, err.Error())
	case apperr.IsUnauthorized(err):
		response.Forbidden(c, err.Error())
	default:
		response.Internal(c, fallback)
	}
}

// Submit handles POST /requests. Submitters who already hold edit rights on
// every org the payload touches get an immediate apply; everyone else gets a
// pending request and the nearest reviewers are notified.
func (h *Handler) Submit(c *gin.Context) {
	var body SubmitRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "id, type, region_id and payload are required")
		return
	}
	reqID, err := uuid.Parse(body.ID)
	if err != nil {
		response.BadRequest(c, "invalid request id")
		return
	}
	payload, err := UnmarshalPayload(body.Kind, body.Payload)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	userID := c.MustGet(auth.ContextUserID).(uuid.UUID)
	email := c.MustGet(auth.ContextUserEmail).(string)

	// Clients may send an AO id here; resolve it to its region.
	region, err := h.walker.NearestAncestorOfType(ctx, body.RegionID, models.OrgTypeRegion)
	if err != nil {
		respondError(c, err, "failed to resolve region")
		return
	}
	if region == nil {
		response.NotFound(c, "no region at or above the given org")
		return
	}

	assignments, err := h.roster.AssignmentsForUser(ctx, userID)
	if err != nil {
		response.Internal(c, "failed to load role assignments")
		return
	}
	granted, err := h.resolver.CheckAll(ctx, assignments, OrgsToCheck(payload, region.ID), models.RoleEditor)
	if err != nil {
		respondError(c, err, "permission check failed")
		return
	}

	token, err := NewToken()
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	req := &models.UpdateRequest{
		ID:          reqID,
		Kind:        body.Kind,
		RegionID:    region.ID,
		SubmittedBy: email,
		Token:       token,
		Payload:     body.Payload,
	}

	if granted {
		res, err := h.dispatcher.Apply(ctx, req, payload)
		if err != nil {
			respondError(c, err, "failed to apply request")
			return
		}
		response.Created(c, res)
		return
	}

	req.Status = models.RequestStatusPending
	if err := h.repo.Upsert(ctx, req); err != nil {
		response.Internal(c, "failed to record request")
		return
	}
	if err := h.escalator.Notify(ctx, req); err != nil {
		// A broken ancestor chain means no reviewer is reachable; the
		// request row stays recorded but the caller must hear about it.
		h.logger.Error("escalation failed",
			zap.String("request_id", req.ID.String()), zap.Error(err))
		respondError(c, err, "failed to notify reviewers")
		return
	}
	response.Created(c, ApplyResult{Request: req})
}

func (h *Handler) loadPending(c *gin.Context) (*models.UpdateRequest, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid request id")
		return nil, false
	}
	req, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "failed to load request")
		return nil, false
	}
	if req.Terminal() {
		response.Conflict(c, "request already reviewed")
		return nil, false
	}
	return req, true
}

func (h *Handler) gateReviewer(c *gin.Context, regionID int64) (string, bool) {
	ctx := c.Request.Context()
	userID := c.MustGet(auth.ContextUserID).(uuid.UUID)
	email := c.MustGet(auth.ContextUserEmail).(string)

	assignments, err := h.roster.AssignmentsForUser(ctx, userID)
	if err != nil {
		response.Internal(c, "failed to load role assignments")
		return "", false
	}
	d, err := h.resolver.CheckRole(ctx, assignments, regionID, models.RoleEditor)
	if err != nil {
		respondError(c, err, "permission check failed")
		return "", false
	}
	if !d.Granted {
		response.Forbidden(c, "editor role required for this region")
		return "", false
	}
	return email, true
}

// Approve handles POST /requests/:id/approve (authenticated review).
func (h *Handler) Approve(c *gin.Context) {
	req, ok := h.loadPending(c)
	if !ok {
		return
	}
	email, ok := h.gateReviewer(c, req.RegionID)
	if !ok {
		return
	}
	payload, err := UnmarshalPayload(req.Kind, req.Payload)
	if err != nil {
		response.Unprocessable(c, err.Error())
		return
	}
	req.ReviewedBy = &email
	res, err := h.dispatcher.Apply(c.Request.Context(), req, payload)
	if err != nil {
		respondError(c, err, "failed to apply request")
		return
	}
	response.OK(c, res)
}

// Reject handles POST /requests/:id/reject.
func (h *Handler) Reject(c *gin.Context) {
	req, ok := h.loadPending(c)
	if !ok {
		return
	}
	email, ok := h.gateReviewer(c, req.RegionID)
	if !ok {
		return
	}
	if err := h.repo.MarkRejected(c.Request.Context(), req.ID, email); err != nil {
		respondError(c, err, "failed to reject request")
		return
	}
	response.OK(c, gin.H{"id": req.ID, "status": models.RequestStatusRejected})
}

// ApproveByToken handles GET /requests/:id/approve. The token from the
// notification email must match the stored value exactly; no session needed.
func (h *Handler) ApproveByToken(c *gin.Context) {
	req, ok := h.loadPending(c)
	if !ok {
		return
	}
	token := c.Query("token")
	if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(req.Token)) != 1 {
		response.Unauthorized(c, "invalid approval token")
		return
	}
	payload, err := UnmarshalPayload(req.Kind, req.Payload)
	if err != nil {
		response.Unprocessable(c, err.Error())
		return
	}
	req.ReviewedBy = &req.SubmittedBy
	res, err := h.dispatcher.Apply(c.Request.Context(), req, payload)
	if err != nil {
		respondError(c, err, "failed to apply request")
		return
	}
	response.OK(c, res)
}

// ListPending handles GET /requests, returning pending requests scoped to
// the orgs the caller can review. Nation-level admins and editors see
// everything.
func (h *Handler) ListPending(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.MustGet(auth.ContextUserID).(uuid.UUID)

	assignments, err := h.roster.AssignmentsForUser(ctx, userID)
	if err != nil {
		response.Internal(c, "failed to load role assignments")
		return
	}
	scope, err := h.walker.CollectEditableOrgs(ctx, assignments)
	if err != nil {
		response.Internal(c, "failed to resolve editable orgs")
		return
	}

	pending, err := h.repo.ListPending(ctx)
	if err != nil {
		response.Internal(c, "failed to load pending requests")
		return
	}
	if scope.IsNationAdmin {
		response.OK(c, pending)
		return
	}

	visible := make([]models.UpdateRequest, 0, len(pending))
	for _, req := range pending {
		chain, err := h.chains.AncestorChain(ctx, req.RegionID)
		if err != nil {
			h.logger.Warn("chain lookup failed for pending request",
				zap.String("request_id", req.ID.String()), zap.Error(err))
			continue
		}
		if scope.Visible(chain) {
			visible = append(visible, req)
		}
	}
	response.OK(c, visible)
}

// ListNotifications handles GET /requests/:id/notifications, the audit trail
// of escalation attempts for one request. Same gate as reviewing it.
func (h *Handler) ListNotifications(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid request id")
		return
	}
	req, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "failed to load request")
		return
	}
	if _, ok := h.gateReviewer(c, req.RegionID); !ok {
		return
	}
	logs, err := h.logs.ListByRequest(c.Request.Context(), req.ID)
	if err != nil {
		response.Internal(c, "failed to load notifications")
		return
	}
	response.OK(c, logs)
}
