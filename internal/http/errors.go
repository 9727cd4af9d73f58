package httpx

import (
	"net/http"

	apperrors "github.com/sproutlog/sproutlog/internal/errors"
)

// WriteAppError maps an application error onto the HTTP surface. Unknown
// errors collapse to a generic 500 so internals never leak to clients.
func WriteAppError(w http.ResponseWriter, err error) {
	code := apperrors.GetCode(err)
	status := statusFor(code)

	if status == http.StatusInternalServerError {
		WriteJSON(w, status, map[string]string{
			"error":   string(apperrors.ErrCodeInternal),
			"message": "internal error",
		})
		return
	}

	WriteError(w, ErrorParams{Code: status, ErrCode: string(code), Err: err})
}

func statusFor(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodePermissionDenied:
		return http.StatusForbidden
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeNotReady:
		return http.StatusConflict
	case apperrors.ErrCodeValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
