package handler

import (
	"errors"
	"net/http"

	"tollway/internal/adapter/http/dto"
	"tollway/internal/adapter/http/middleware"
	"tollway/internal/core/ports"
	"tollway/pkg/apperror"
	"tollway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// TollEventHandler accepts signed toll events from stations and queues them.
type TollEventHandler struct {
	queue ports.EventQueue
	log   zerolog.Logger
}

// NewTollEventHandler creates a new TollEventHandler.
func NewTollEventHandler(queue ports.EventQueue, log zerolog.Logger) *TollEventHandler {
	return &TollEventHandler{queue: queue, log: log}
}

// Ingest handles POST /api/v1/toll-events.
func (h *TollEventHandler) Ingest(c *gin.Context) {
	var req dto.TollEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, apperror.ErrPayloadTooLarge(tooLarge.Limit))
			return
		}
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	if (req.Plate == nil || *req.Plate == "") && (req.TagID == nil || *req.TagID == "") {
		response.Error(c, apperror.ErrMissingIdentity())
		return
	}

	msgID, err := h.queue.Publish(c.Request.Context(), req.ToDomain())
	if err != nil {
		h.log.Error().Err(err).Str("event_id", req.EventID).Msg("failed to queue toll event")
		response.Error(c, apperror.ErrQueue(err))
		return
	}

	h.log.Debug().
		Str("event_id", req.EventID).
		Str("message_id", msgID).
		Str("station_id", c.GetString(middleware.CtxStationID)).
		Msg("toll event queued")

	response.Accepted(c, dto.TollEventAccepted{EventID: req.EventID, MessageID: msgID})
}
