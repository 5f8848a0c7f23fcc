package api

import (
	"time"

	"SPXEngine/internal/domain/models"
	"SPXEngine/internal/usecase"
	xhttp "SPXEngine/pkg/http"
	xlogger "SPXEngine/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ListSessions returns stored session summaries, newest first. Admin only.
func (h *Handler) ListSessions(c echo.Context) error {
	if err := h.requireAdmin(c); err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	limit := xhttp.ParseIntDefault(c.QueryParam("limit"), 0)
	from := xhttp.ParseTimeDefault(c.QueryParam("from"), time.Time{})
	to := xhttp.ParseTimeDefault(c.QueryParam("to"), time.Time{})

	rows, err := h.sessions.List(c.Request().Context(), from, to, limit)
	if err != nil {
		h.logger.Error("list sessions error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

// GetSession returns one full session journal. Admin only.
func (h *Handler) GetSession(c echo.Context) error {
	if err := h.requireAdmin(c); err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	id := c.Param("id")
	sess, err := h.sessions.Get(c.Request().Context(), id)
	if err != nil {
		h.logger.Error("get session error", xlogger.String("id", id), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if sess == nil {
		return xhttp.NotFoundResponse(c, "session not found")
	}
	return xhttp.SuccessResponse(c, sess)
}

// GetFrame projects one playback frame of a stored session. Admin only.
func (h *Handler) GetFrame(c echo.Context) error {
	if err := h.requireAdmin(c); err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	id := c.Param("id")
	req := &models.ReplayFrameRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	frame, err := h.sessions.Frame(c.Request().Context(), id, *req)
	if err != nil {
		h.logger.Error("frame error", xlogger.String("id", id), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if frame == nil {
		return xhttp.NotFoundResponse(c, "session not found")
	}
	return xhttp.SuccessResponse(c, frame)
}

// RechecksumSession recomputes a stored session's checksum. Admin only.
func (h *Handler) RechecksumSession(c echo.Context) error {
	if err := h.requireAdmin(c); err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	id := c.Param("id")
	sum, err := h.sessions.Rechecksum(c.Request().Context(), id)
	if err != nil {
		h.logger.Error("rechecksum error", xlogger.String("id", id), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if sum == "" {
		return xhttp.NotFoundResponse(c, "session not found")
	}
	return xhttp.SuccessResponse(c, map[string]string{"id": id, "checksum": sum})
}

// UploadSession stores a session journal. Admin only. With a work
// queue attached the upload is acknowledged before persistence.
func (h *Handler) UploadSession(c echo.Context) error {
	if err := h.requireAdmin(c); err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	sess := &models.ReplaySession{}
	if verr := xhttp.ReadAndValidateRequest(c, sess); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if sess.ID == "" {
		return xhttp.BadRequestResponse(c, "session id required")
	}

	ctx := c.Request().Context()
	if h.ingest != nil {
		if err := h.ingest.PublishMessage(ctx, usecase.ReplayIngestType, sess); err != nil {
			h.logger.Error("ingest enqueue error", xlogger.String("id", sess.ID), xlogger.Error(err))
			return xhttp.AppErrorResponse(c, err)
		}
		return xhttp.CreatedResponse(c, map[string]string{"id": sess.ID, "status": "queued"})
	}

	if err := h.sessions.Save(ctx, sess); err != nil {
		h.logger.Error("save session error", xlogger.String("id", sess.ID), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.CreatedResponse(c, map[string]string{
		"id":       sess.ID,
		"status":   "stored",
		"checksum": sess.Checksum,
	})
}
