package api

import (
	"SPXEngine/internal/domain/models"
	"SPXEngine/internal/services/grading"
	"SPXEngine/internal/services/model"
	"SPXEngine/internal/usecase"
	xhttp "SPXEngine/pkg/http"
	xlogger "SPXEngine/pkg/logger"
	"SPXEngine/pkg/queue"

	"github.com/labstack/echo/v4"
)

// Handler wires the decision and replay endpoints onto Echo.
type Handler struct {
	logger     *xlogger.Logger
	evaluator  *usecase.Evaluator
	sessions   *usecase.ReplaySessions
	loader     *model.Loader
	ingest     queue.QueueService
	adminToken string
}

type HandlerOption func(*Handler)

// WithAdminToken enables admin gating for mutating endpoints.
func WithAdminToken(token string) HandlerOption {
	return func(h *Handler) { h.adminToken = token }
}

// WithIngestQueue routes session uploads through the work queue instead
// of persisting inline.
func WithIngestQueue(q queue.QueueService) HandlerOption {
	return func(h *Handler) { h.ingest = q }
}

func NewHandler(logger *xlogger.Logger, evaluator *usecase.Evaluator, sessions *usecase.ReplaySessions, loader *model.Loader, opts ...HandlerOption) *Handler {
	h := &Handler{
		logger:    logger,
		evaluator: evaluator,
		sessions:  sessions,
		loader:    loader,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

var _ xhttp.Handler = (*Handler)(nil)

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/evaluate", h.Evaluate)
	g.GET("/calendar", h.Calendar)
	g.POST("/grade", h.Grade)

	g.GET("/model/status", h.ModelStatus)
	g.POST("/model/refresh", h.ModelRefresh)

	g.GET("/replay/sessions", h.ListSessions)
	g.POST("/replay/sessions", h.UploadSession)
	g.GET("/replay/sessions/:id", h.GetSession)
	g.GET("/replay/sessions/:id/frame", h.GetFrame)
	g.POST("/replay/sessions/:id/rechecksum", h.RechecksumSession)
}

// Evaluate scores a batch of candidate setups.
func (h *Handler) Evaluate(c echo.Context) error {
	req := &models.EvaluateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res := h.evaluator.Evaluate(c.Request().Context(), *req)
	return xhttp.SuccessResponse(c, res)
}

// Calendar classifies one Eastern session date.
func (h *Handler) Calendar(c echo.Context) error {
	req := &models.CalendarRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	return xhttp.SuccessResponse(c, h.evaluator.Calendar(req.Date))
}

// Grade scores a completed session's trade discipline.
func (h *Handler) Grade(c echo.Context) error {
	req := &models.GradeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	return xhttp.SuccessResponse(c, grading.Grade(req.Stats, req.Trades))
}

// ModelStatus reports the confidence-model loader state.
func (h *Handler) ModelStatus(c echo.Context) error {
	if h.loader == nil {
		return xhttp.NotFoundResponse(c, "model loader not configured")
	}
	return xhttp.SuccessResponse(c, h.loader.Status())
}

// ModelRefresh forces a weights reload. Admin only.
func (h *Handler) ModelRefresh(c echo.Context) error {
	if err := h.requireAdmin(c); err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	if h.loader == nil {
		return xhttp.NotFoundResponse(c, "model loader not configured")
	}

	req := &models.ModelRefreshRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	h.loader.Load(c.Request().Context(), req.Force)
	return xhttp.SuccessResponse(c, h.loader.Status())
}

func (h *Handler) requireAdmin(c echo.Context) error {
	if h.adminToken == "" {
		return xhttp.ForbiddenError("admin endpoints disabled")
	}
	token := c.Request().Header.Get("X-Admin-Token")
	if token == "" {
		const prefix = "Bearer "
		if auth := c.Request().Header.Get(echo.HeaderAuthorization); len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
			token = auth[len(prefix):]
		}
	}
	if token != h.adminToken {
		return xhttp.ForbiddenError("admin token required")
	}
	return nil
}
