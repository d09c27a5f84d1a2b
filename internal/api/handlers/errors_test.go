package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"example.com/campushub/services/events/internal/workflow"
)

func TestWriteErrorStatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", errors.Wrap(workflow.ErrValidation, "reason required"), http.StatusBadRequest},
		{"unauthorized", errors.Wrap(workflow.ErrUnauthorized, "wrong role"), http.StatusForbidden},
		{"not found", errors.Wrap(workflow.ErrNotFound, "no such event"), http.StatusNotFound},
		{"conflict", errors.Wrap(workflow.ErrConflict, "already advanced"), http.StatusConflict},
		{"invalid transition", errors.Wrap(workflow.ErrInvalidTransition, "terminal state"), http.StatusUnprocessableEntity},
		{"unknown", errors.New("database exploded"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(recorder)

			writeError(c, tc.err)
			require.Equal(t, tc.status, recorder.Code)
		})
	}
}

func TestWriteErrorHidesInternalDetail(t *testing.T) {
	gin.SetMode(gin.TestMode)

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)

	writeError(c, errors.New("dial tcp 10.0.0.3:5432: connection refused"))
	require.Equal(t, http.StatusInternalServerError, recorder.Code)
	require.NotContains(t, recorder.Body.String(), "10.0.0.3")
}
