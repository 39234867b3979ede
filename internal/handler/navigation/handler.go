package navigation

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/meditrack/internal/middleware"
	"github.com/jwalitptl/meditrack/internal/navigation"
	"github.com/jwalitptl/meditrack/pkg/httputil"
)

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/navigation", h.GetNavigation)
}

// GetNavigation returns the sidebar for the signed-in user's role.
func (h *Handler) GetNavigation(c *gin.Context) {
	s := middleware.CurrentSession(c)
	httputil.RespondWithSuccess(c, http.StatusOK, navigation.For(s.Role()))
}
