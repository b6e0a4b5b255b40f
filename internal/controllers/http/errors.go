package http

import (
	"errors"
	"net/http"

	"github.com/izeeshan007/eternal-essence-backend/internal/domain"
	"github.com/izeeshan007/eternal-essence-backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// statusForError maps the engine's error taxonomy onto HTTP. Security and
// infrastructure failures get fixed messages; validation and transition
// rejections are shown as-is since they tell the caller what to do.
func statusForError(err error) (int, string) {
	switch {
	case domain.IsValidation(err):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrSignatureInvalid):
		return http.StatusBadRequest, domain.ErrSignatureInvalid.Error()
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "order not found"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrInvalidTransition):
		var te *domain.TransitionError
		if errors.As(err, &te) {
			return http.StatusConflict, te.Error()
		}
		return http.StatusConflict, domain.ErrInvalidTransition.Error()
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "order changed while the request was processed"
	case errors.Is(err, domain.ErrGatewayUnavailable):
		return http.StatusServiceUnavailable, "payment gateway unavailable, retry payment later"
	case errors.Is(err, domain.ErrGatewayRejected):
		return http.StatusBadGateway, domain.ErrGatewayRejected.Error()
	case errors.Is(err, domain.ErrCatalogUnavailable):
		return http.StatusServiceUnavailable, domain.ErrCatalogUnavailable.Error()
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, domain.ErrStoreUnavailable.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func respondError(c *gin.Context, err error) {
	status, msg := statusForError(err)
	body := ErrorResponse{Error: msg}

	var pending *services.PaymentPendingError
	if errors.As(err, &pending) {
		body.OrderID = pending.OrderID
	}

	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("request_id", c.GetString(requestIDKey)).Int("status", status).Msg("request failed")
	}
	c.AbortWithStatusJSON(status, body)
}
