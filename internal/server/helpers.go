package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cwbudde/mandelsimd/internal/app"
	"github.com/cwbudde/mandelsimd/internal/kernel"
	"github.com/cwbudde/mandelsimd/internal/raster"
	"github.com/cwbudde/mandelsimd/internal/store"
)

// requestError is a malformed request that no sentinel describes.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

// statusFor maps an error to an HTTP status. Kernel precondition failures
// are 422 so clients can tell a rejected raster from a server fault.
func statusFor(err error) int {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr),
		errors.Is(err, kernel.ErrUnknownBackend),
		errors.Is(err, raster.ErrUnknownFormat):
		return http.StatusBadRequest
	case errors.Is(err, kernel.ErrInvalidDimensions),
		errors.Is(err, kernel.ErrLaneMisaligned),
		errors.Is(err, kernel.ErrBufferTooSmall),
		errors.Is(err, kernel.ErrInvalidRowRange):
		return http.StatusUnprocessableEntity
	case errors.Is(err, kernel.ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, app.ErrNoFrame):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError reports err with the status statusFor chooses.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "error", err)
	}
	http.Error(w, err.Error(), status)
}

// writeJSON encodes v as the response body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// checkSize rejects rasters above maxDimension on either axis.
func checkSize(width, height int) error {
	if width > maxDimension || height > maxDimension {
		return &requestError{msg: fmt.Sprintf("raster %dx%d exceeds %d pixels per side", width, height, maxDimension)}
	}
	return nil
}

// intParam parses a query value, returning def when it is empty.
func intParam(value string, def int) (int, error) {
	if value == "" {
		return def, nil
	}
	return strconv.Atoi(value)
}
