package dashboard

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/meditrack/internal/dashboard"
	"github.com/jwalitptl/meditrack/internal/middleware"
	"github.com/jwalitptl/meditrack/pkg/errors"
	"github.com/jwalitptl/meditrack/pkg/httputil"
)

type Handler struct {
	builder *dashboard.Builder
}

func NewHandler(builder *dashboard.Builder) *Handler {
	return &Handler{builder: builder}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/dashboard", h.GetDashboard)
}

func (h *Handler) GetDashboard(c *gin.Context) {
	user := middleware.CurrentSession(c).CurrentUser()
	if user == nil {
		httputil.RespondWithError(c, errors.Authentication("not signed in", nil))
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, h.builder.Summary(c.Request.Context(), *user))
}
