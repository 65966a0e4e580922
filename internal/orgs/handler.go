package orgs

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hubatlas/backend/internal/apperr"
	"github.com/hubatlas/backend/pkg/response"
)

// Handler handles read-only org tree HTTP endpoints.
type Handler struct {
	repo   *Repository
	walker *Walker
}

// NewHandler creates an org handler.
func NewHandler(repo *Repository, walker *Walker) *Handler {
	return &Handler{repo: repo, walker: walker}
}

func orgIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid org id")
		return 0, false
	}
	return id, true
}

// GetByID handles GET /orgs/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, ok := orgIDParam(c)
	if !ok {
		return
	}
	org, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if apperr.IsNotFound(err) {
			response.NotFound(c, err.Error())
			return
		}
		response.Internal(c, "failed to load org")
		return
	}
	response.OK(c, org)
}

// ListChildren handles GET /orgs/:id/children.
func (h *Handler) ListChildren(c *gin.Context) {
	id, ok := orgIDParam(c)
	if !ok {
		return
	}
	children, err := h.repo.ChildrenByParent(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to load children")
		return
	}
	response.OK(c, children)
}

// ListAncestors handles GET /orgs/:id/ancestors. Returns the chain lowest
// rank first, starting at the org itself.
func (h *Handler) ListAncestors(c *gin.Context) {
	id, ok := orgIDParam(c)
	if !ok {
		return
	}
	chain, err := h.repo.AncestorChain(c.Request.Context(), id)
	if err != nil {
		if apperr.IsNotFound(err) {
			response.NotFound(c, err.Error())
			return
		}
		response.Internal(c, "failed to load ancestors")
		return
	}
	out := make([]any, 0, len(chain))
	for _, o := range chain {
		if o != nil {
			out = append(out, o)
		}
	}
	response.OK(c, out)
}
