package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"example.com/campushub/services/events/config"
	"example.com/campushub/services/events/internal/api/middleware"
	"example.com/campushub/services/events/internal/tracing"
)

// The handler rejects bad input before reaching the approval service, so
// these tests run against a handler with no service wired.
func approvalRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tracer, err := tracing.NewTracer(config.TracingConfig{})
	require.NoError(t, err)

	router := gin.New()
	router.Use(middleware.Identity())
	NewApprovalHandler(nil, tracer).RegisterRoutes(router)
	return router
}

func postJSON(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", uuid.New().String())
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestApprovalRejectsBlankReason(t *testing.T) {
	router := approvalRouter(t)
	eventID := uuid.New()

	for _, path := range []string{"request-revision", "reject", "respond"} {
		for _, body := range [][2]string{
			{"empty object", `{}`},
			{"blank reason", `{"reason": "   "}`},
			{"blank response", `{"response": "\t"}`},
		} {
			recorder := postJSON(router, "/events/"+eventID.String()+"/"+path, body[1])
			require.Equal(t, http.StatusBadRequest, recorder.Code, "%s with %s", path, body[0])
		}
	}
}

func TestApprovalRejectsMalformedBody(t *testing.T) {
	router := approvalRouter(t)

	recorder := postJSON(router, "/events/"+uuid.New().String()+"/reject", `{"reason": `)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestApprovalRejectsInvalidEventID(t *testing.T) {
	router := approvalRouter(t)

	recorder := postJSON(router, "/events/not-a-uuid/reject", `{"reason": "too loud"}`)
	require.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestApprovalRequiresIdentity(t *testing.T) {
	router := approvalRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/events/"+uuid.New().String()+"/approve", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
}
