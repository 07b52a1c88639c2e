package handler

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/furniture-store/internal/model"
	"github.com/mmeshcher/furniture-store/internal/service"
)

// statusFromError выбирает HTTP-статус по категории ошибки. Неизвестный купон
// в заказе оборачивает ErrNotFound в ErrInvalidCoupon и отвечает 422.
func statusFromError(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidCoupon):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrInsufficientStock):
		return http.StatusConflict
	case errors.Is(err, model.ErrIllegalStateTransition):
		return http.StatusConflict
	case errors.Is(err, model.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError отвечает JSON с описанием ошибки. Для ошибки позиции заказа
// добавляются productId и itemIndex. Внутренние ошибки не раскрываются клиенту.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFromError(err)

	resp := errorResponse{Error: err.Error()}
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		resp.Error = http.StatusText(http.StatusInternalServerError)
	}

	var itemErr *service.ItemError
	if errors.As(err, &itemErr) {
		resp.ProductID = &itemErr.ProductID
		resp.ItemIndex = &itemErr.Index
	}

	h.writeJSON(w, status, resp)
}
