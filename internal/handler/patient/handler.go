package patient

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/meditrack/internal/handler"
	"github.com/jwalitptl/meditrack/internal/listview"
	"github.com/jwalitptl/meditrack/internal/middleware"
	"github.com/jwalitptl/meditrack/internal/model"
	"github.com/jwalitptl/meditrack/internal/service/patient"
	"github.com/jwalitptl/meditrack/internal/view"
	"github.com/jwalitptl/meditrack/pkg/httputil"
)

type Handler struct {
	service patient.PatientService
	views   *listview.Registry
	// wait bounds how long a view request blocks on its fetch before
	// returning the loading state.
	wait   time.Duration
	now    func() time.Time
	logger zerolog.Logger
}

func NewHandler(service patient.PatientService, views *listview.Registry, wait time.Duration, logger zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		views:   views,
		wait:    wait,
		now:     time.Now,
		logger:  logger.With().Str("handler", "patient").Logger(),
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	patients := r.Group("/patients")
	{
		patients.GET("/view", h.View)
		patients.POST("/view/retry", h.Retry)
		patients.POST("/view/dismiss", h.Dismiss)

		patients.GET("", h.ListPatients)
		patients.POST("", h.CreatePatient)
		patients.GET("/:id", h.GetPatient)
		patients.PUT("/:id", h.UpdatePatient)
		patients.DELETE("/:id", middleware.RequireRole(model.RoleAdmin, model.RoleDoctor), h.DeletePatient)
	}
}

// View applies the search term and page from the query to the session's
// table and returns the rendered table.
func (h *Handler) View(c *gin.Context) {
	s := middleware.CurrentSession(c)
	ctrl := h.views.For(s.ID.String())

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}

	ticket := ctrl.Apply(c.Request.Context(), c.Query("search"), page)
	h.render(c, ctrl, ticket)
}

func (h *Handler) Retry(c *gin.Context) {
	s := middleware.CurrentSession(c)
	ctrl := h.views.For(s.ID.String())
	h.render(c, ctrl, ctrl.Retry(c.Request.Context()))
}

func (h *Handler) Dismiss(c *gin.Context) {
	s := middleware.CurrentSession(c)
	ctrl := h.views.For(s.ID.String())
	ctrl.DismissNotice()
	httputil.RespondWithSuccess(c, http.StatusOK, view.RenderTable(ctrl.State(), s.Role(), h.now()))
}

func (h *Handler) render(c *gin.Context, ctrl *listview.Controller, ticket listview.Ticket) {
	timer := time.NewTimer(h.wait)
	defer timer.Stop()

	select {
	case <-ticket.Done():
	case <-timer.C:
	case <-c.Request.Context().Done():
		h.logger.Debug().Uint64("seq", ticket.Seq).Msg("client went away before the patient list loaded")
		return
	}

	s := middleware.CurrentSession(c)
	httputil.RespondWithSuccess(c, http.StatusOK, view.RenderTable(ctrl.State(), s.Role(), h.now()))
}

func (h *Handler) ListPatients(c *gin.Context) {
	var params model.ListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		httputil.RespondWithError(c, handler.BindError(err))
		return
	}
	if params.Limit == 0 {
		params.Limit = patient.DefaultLimit
	}

	page, err := h.service.List(c.Request.Context(), params)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithPagination(c, page.Items, params.Skip, params.Limit, page.Total)
}

func (h *Handler) GetPatient(c *gin.Context) {
	p, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, p)
}

func (h *Handler) CreatePatient(c *gin.Context) {
	var req model.CreatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, handler.BindError(err))
		return
	}

	p, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	h.refreshView(c)
	httputil.RespondWithSuccess(c, http.StatusCreated, p)
}

func (h *Handler) UpdatePatient(c *gin.Context) {
	var req model.UpdatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, handler.BindError(err))
		return
	}

	p, err := h.service.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	h.refreshView(c)
	httputil.RespondWithSuccess(c, http.StatusOK, p)
}

func (h *Handler) DeletePatient(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	h.refreshView(c)
	c.Status(http.StatusNoContent)
}

// refreshView re-fetches the session's table after a change so the next
// view request shows it.
func (h *Handler) refreshView(c *gin.Context) {
	s := middleware.CurrentSession(c)
	if s == nil {
		return
	}
	if ctrl, ok := h.views.Peek(s.ID.String()); ok {
		ctrl.Retry(c.Request.Context())
	}
}
