// api/controller/audit_controller_test.go
package controller_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aegis-governance/aegis/api/audit"
	"github.com/aegis-governance/aegis/api/controller"
	aegis_errors "github.com/aegis-governance/aegis/api/errors"
	"github.com/aegis-governance/aegis/api/feedback"
	mock_test "github.com/aegis-governance/aegis/api/test/mock"
)

func TestAuditController(t *testing.T) {
	auditService := new(mock_test.MockAuditService)
	auditController := controller.NewAuditController(auditService)

	router := gin.New()
	api := router.Group("/", asPrincipal("admin-1", "governance-admin"))
	auditController.RegisterRoutes(api)

	t.Run("QueryRecords", func(t *testing.T) {
		auditService.On("Query", mock.Anything, mock.Anything, mock.Anything, "session-1", "").
			Return([]audit.Record{{AuditID: "a1"}, {AuditID: "a2"}}, nil).Once()

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/audit/records?session_id=session-1", nil)
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, float64(2), resp["count"])
	})

	t.Run("QueryRecords_BadWindow", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/audit/records?from=yesterday", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("GetRecord_NotFound", func(t *testing.T) {
		auditService.On("GetRecord", mock.Anything, "missing").
			Return(nil, aegis_errors.ErrAuditNotFound).Once()

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/audit/records/missing", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("GetAnalytics", func(t *testing.T) {
		auditService.On("Analytics", mock.Anything, mock.Anything, mock.Anything).
			Return(&audit.AnalyticsSummary{TotalRuns: 10, Decisions: map[string]int64{"allow": 7, "block": 3}}, nil).Once()

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/audit/analytics", nil)
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp audit.AnalyticsSummary
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, int64(10), resp.TotalRuns)
	})

	t.Run("ReplayFallback", func(t *testing.T) {
		auditService.On("ReplayFallback", mock.Anything).Return(4, nil).Once()

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/audit/replay", nil)
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, float64(4), resp["replayed"])
	})
}

func TestFeedbackController(t *testing.T) {
	repo := new(mock_test.MockAuditRepository)
	feedbackController := controller.NewFeedbackController(feedback.NewService(repo, nil))

	router := gin.New()
	api := router.Group("/", asPrincipal("user-1", "analyst"))
	feedbackController.RegisterRoutes(api)

	t.Run("SubmitFeedback_Success", func(t *testing.T) {
		repo.On("GetByID", mock.Anything, "audit-1").Return(&audit.Record{AuditID: "audit-1"}, nil).Once()
		repo.On("PutFeedback", mock.Anything, mock.Anything).Return(nil).Once()

		body := strings.NewReader(`{"audit_id":"audit-1","rating":5,"comment":"useful"}`)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/feedback", body)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("SubmitFeedback_UnknownAudit", func(t *testing.T) {
		repo.On("GetByID", mock.Anything, "missing").Return(nil, aegis_errors.ErrAuditNotFound).Once()

		body := strings.NewReader(`{"audit_id":"missing","rating":2}`)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/feedback", body)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("SubmitFeedback_InvalidRating", func(t *testing.T) {
		repo.On("GetByID", mock.Anything, "audit-1").Return(&audit.Record{AuditID: "audit-1"}, nil).Maybe()

		body := strings.NewReader(`{"audit_id":"audit-1","rating":9}`)
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/feedback", body)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
