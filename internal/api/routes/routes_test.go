package routes

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/openhelm/supportdesk/internal/api/handlers"
	"github.com/openhelm/supportdesk/internal/api/middleware"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logrus.New()
	log.SetOutput(io.Discard)

	r := gin.New()
	Register(r, Deps{
		Logger:     log,
		Auth:       &handlers.AuthHandler{},
		Ticket:     &handlers.TicketHandler{},
		Chat:       &handlers.ChatHandler{},
		Attachment: &handlers.AttachmentHandler{},
		Admin:      &handlers.AdminHandler{},
		WS:         &handlers.WSHandler{Logger: log},
	})
	return r
}

func TestHealthz(t *testing.T) {
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAgentSurfaceRequiresBearerToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	r := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/tickets", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminSurfaceRejectsAgents(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	r := newTestRouter(t)

	token, err := middleware.IssueToken(7, "agent", time.Hour)
	assert.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/consistency/sweep", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}
