package requests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubatlas/backend/internal/apperr"
	"github.com/hubatlas/backend/internal/auth"
	"github.com/hubatlas/backend/internal/models"
	"github.com/hubatlas/backend/internal/orgs"
	"github.com/hubatlas/backend/internal/permissions"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubRoster struct {
	assignments []models.RoleAssignment
	err         error
}

func (s stubRoster) AssignmentsForUser(_ context.Context, _ uuid.UUID) ([]models.RoleAssignment, error) {
	return s.assignments, s.err
}

type stubEscalator struct {
	notified []uuid.UUID
	err      error
}

func (s *stubEscalator) Notify(_ context.Context, req *models.UpdateRequest) error {
	s.notified = append(s.notified, req.ID)
	return s.err
}

type stubLogs struct {
	byRequest map[uuid.UUID][]models.NotificationLog
}

func (s stubLogs) ListByRequest(_ context.Context, id uuid.UUID) ([]models.NotificationLog, error) {
	return s.byRequest[id], nil
}

func newTestHandler(s *memStore, roster AssignmentSource, esc Escalation, logs NotificationLogSource) *Handler {
	chains := memOrgs{s}
	return NewHandler(NewDispatcher(s, nil, nil, nil), permissions.NewResolver(chains),
		orgs.NewWalker(chains), chains, roster, s.Requests(), esc, logs, nil)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newTestContext(t *testing.T, method, target string, body any) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	c.Request = httptest.NewRequest(method, target, &buf)
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

func authedContext(t *testing.T, method, target string, body any) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	c, w := newTestContext(t, method, target, body)
	c.Set(auth.ContextUserID, uuid.New())
	c.Set(auth.ContextUserEmail, "sub@example.com")
	return c, w
}

// seedPendingDelete stores a pending delete_event request for the first event
// in seedRegions and returns it alongside the seeded graph ids.
func seedPendingDelete(s *memStore) (*models.UpdateRequest, int64, int64) {
	_, oldRegion, _, _, e1, _ := seedRegions(s)
	raw, _ := json.Marshal(&DeleteEvent{EventID: e1})
	req := models.UpdateRequest{
		ID:          uuid.New(),
		Status:      models.RequestStatusPending,
		Kind:        models.KindDeleteEvent,
		RegionID:    oldRegion,
		SubmittedBy: "sub@example.com",
		Token:       "1f6c4a9d2e8b7f3a",
		Payload:     raw,
		CreatedAt:   time.Now().UTC(),
	}
	s.rows[req.ID] = req
	return &req, oldRegion, e1
}

func TestApproveByTokenApplies(t *testing.T) {
	s := newMemStore()
	req, _, e1 := seedPendingDelete(s)
	h := newTestHandler(s, stubRoster{}, &stubEscalator{}, stubLogs{})

	c, w := newTestContext(t, http.MethodGet,
		"/requests/"+req.ID.String()+"/approve?token="+req.Token, nil)
	c.Params = gin.Params{{Key: "id", Value: req.ID.String()}}
	h.ApproveByToken(c)

	require.Equal(t, http.StatusOK, w.Code)
	row := s.rows[req.ID]
	assert.Equal(t, models.RequestStatusApproved, row.Status)
	require.NotNil(t, row.ReviewedBy)
	assert.Equal(t, req.SubmittedBy, *row.ReviewedBy)
	assert.False(t, s.events[e1].IsActive)
}

func TestApproveByTokenMismatch(t *testing.T) {
	s := newMemStore()
	req, _, e1 := seedPendingDelete(s)
	h := newTestHandler(s, stubRoster{}, &stubEscalator{}, stubLogs{})

	for _, token := range []string{"", "wrong-token"} {
		c, w := newTestContext(t, http.MethodGet,
			"/requests/"+req.ID.String()+"/approve?token="+token, nil)
		c.Params = gin.Params{{Key: "id", Value: req.ID.String()}}
		h.ApproveByToken(c)

		assert.Equal(t, http.StatusUnauthorized, w.Code, "token %q", token)
	}
	assert.Equal(t, models.RequestStatusPending, s.rows[req.ID].Status)
	assert.True(t, s.events[e1].IsActive)
}

func TestApproveByTokenAlreadyReviewed(t *testing.T) {
	s := newMemStore()
	req, _, _ := seedPendingDelete(s)
	row := s.rows[req.ID]
	row.Status = models.RequestStatusApproved
	s.rows[req.ID] = row
	h := newTestHandler(s, stubRoster{}, &stubEscalator{}, stubLogs{})

	c, w := newTestContext(t, http.MethodGet,
		"/requests/"+req.ID.String()+"/approve?token="+req.Token, nil)
	c.Params = gin.Params{{Key: "id", Value: req.ID.String()}}
	h.ApproveByToken(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, models.RequestStatusApproved, s.rows[req.ID].Status)
}

func TestSubmitWithoutRightsGoesPending(t *testing.T) {
	s := newMemStore()
	aoID, oldRegion, _, _, e1, _ := seedRegions(s)
	esc := &stubEscalator{}
	h := newTestHandler(s, stubRoster{}, esc, stubLogs{})

	// The client sends the AO id; the handler must resolve it to its region.
	reqID := uuid.New()
	c, w := authedContext(t, http.MethodPost, "/requests", gin.H{
		"id":        reqID.String(),
		"type":      models.KindDeleteEvent,
		"region_id": aoID,
		"payload":   gin.H{"event_id": e1},
	})
	h.Submit(c)

	require.Equal(t, http.StatusCreated, w.Code)
	row, ok := s.rows[reqID]
	require.True(t, ok)
	assert.Equal(t, models.RequestStatusPending, row.Status)
	assert.Equal(t, oldRegion, row.RegionID)
	assert.Equal(t, "sub@example.com", row.SubmittedBy)
	assert.NotEmpty(t, row.Token)
	assert.Equal(t, []uuid.UUID{reqID}, esc.notified)

	// Nothing applied until a reviewer decides.
	assert.True(t, s.events[e1].IsActive)
}

func TestSubmitWithEditorRoleAppliesImmediately(t *testing.T) {
	s := newMemStore()
	_, oldRegion, _, _, e1, _ := seedRegions(s)
	esc := &stubEscalator{}
	roster := stubRoster{assignments: []models.RoleAssignment{
		{UserID: uuid.New(), RoleName: models.RoleEditor, OrgID: oldRegion},
	}}
	h := newTestHandler(s, roster, esc, stubLogs{})

	reqID := uuid.New()
	c, w := authedContext(t, http.MethodPost, "/requests", gin.H{
		"id":        reqID.String(),
		"type":      models.KindDeleteEvent,
		"region_id": oldRegion,
		"payload":   gin.H{"event_id": e1},
	})
	h.Submit(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, models.RequestStatusApproved, s.rows[reqID].Status)
	assert.False(t, s.events[e1].IsActive)
	assert.Empty(t, esc.notified)
}

func TestSubmitEscalationFailureSurfaces(t *testing.T) {
	s := newMemStore()
	_, oldRegion, _, _, e1, _ := seedRegions(s)
	esc := &stubEscalator{err: apperr.NotFound("area not found above region %d", oldRegion)}
	h := newTestHandler(s, stubRoster{}, esc, stubLogs{})

	reqID := uuid.New()
	c, w := authedContext(t, http.MethodPost, "/requests", gin.H{
		"id":        reqID.String(),
		"type":      models.KindDeleteEvent,
		"region_id": oldRegion,
		"payload":   gin.H{"event_id": e1},
	})
	h.Submit(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	// The row stays recorded so a retry can re-notify.
	assert.Equal(t, models.RequestStatusPending, s.rows[reqID].Status)
}

func TestListNotificationsForReviewer(t *testing.T) {
	s := newMemStore()
	req, oldRegion, _ := seedPendingDelete(s)
	logs := stubLogs{byRequest: map[uuid.UUID][]models.NotificationLog{
		req.ID: {
			{ID: uuid.New(), RequestID: req.ID, RecipientEmail: "admin@example.com", RecipientOrgID: oldRegion, Status: "sent"},
			{ID: uuid.New(), RequestID: req.ID, RecipientEmail: "editor@example.com", RecipientOrgID: oldRegion, Status: "failed"},
		},
	}}
	roster := stubRoster{assignments: []models.RoleAssignment{
		{UserID: uuid.New(), RoleName: models.RoleAdmin, OrgID: oldRegion},
	}}
	h := newTestHandler(s, roster, &stubEscalator{}, logs)

	c, w := authedContext(t, http.MethodGet, "/requests/"+req.ID.String()+"/notifications", nil)
	c.Params = gin.Params{{Key: "id", Value: req.ID.String()}}
	h.ListNotifications(c)

	require.Equal(t, http.StatusOK, w.Code)
	var body envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	var got []models.NotificationLog
	require.NoError(t, json.Unmarshal(body.Data, &got))
	require.Len(t, got, 2)
	assert.Equal(t, "admin@example.com", got[0].RecipientEmail)
}

func TestListNotificationsRequiresReviewer(t *testing.T) {
	s := newMemStore()
	req, _, _ := seedPendingDelete(s)
	h := newTestHandler(s, stubRoster{}, &stubEscalator{}, stubLogs{})

	c, w := authedContext(t, http.MethodGet, "/requests/"+req.ID.String()+"/notifications", nil)
	c.Params = gin.Params{{Key: "id", Value: req.ID.String()}}
	h.ListNotifications(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestListNotificationsUnknownRequest(t *testing.T) {
	s := newMemStore()
	seedRegions(s)
	h := newTestHandler(s, stubRoster{}, &stubEscalator{}, stubLogs{})

	id := uuid.New()
	c, w := authedContext(t, http.MethodGet, "/requests/"+id.String()+"/notifications", nil)
	c.Params = gin.Params{{Key: "id", Value: id.String()}}
	h.ListNotifications(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
