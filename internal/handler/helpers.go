package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	internal_errors "github.com/dn5s/lthread/internal/errors"
	"github.com/dn5s/lthread/internal/logger"
)

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Error("failed to encode response", "error", err)
	}
}

// writeJSONStatus sets headers before the status line goes out; headers set
// after WriteHeader are silently dropped.
func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	if e, ok := err.(*internal_errors.ErrorWithStatusCode); ok {
		http.Error(w, e.Message, e.StatusCode)
		return
	}
	if e, ok := err.(*internal_errors.ValidationError); ok {
		http.Error(w, e.Error(), http.StatusBadRequest)
		return
	}
	logger.Log.Error("unhandled error", "error", err)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

func parseIntParam(value, name string) (int, error) {
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 1 {
		return 0, fmt.Errorf("invalid %s parameter", name)
	}
	return parsed, nil
}

func parseIdParam(value string) (int64, error) {
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil || parsed < 1 {
		return 0, fmt.Errorf("invalid id")
	}
	return parsed, nil
}

// maxUploadBytes bounds multipart memory usage; the image collaborator
// enforces the actual 20MB image limit.
const maxUploadBytes = 32 << 20

// readUpload pulls the optional image file out of a multipart form.
func readUpload(r *http.Request, field string) ([]byte, string, error) {
	file, header, err := r.FormFile(field)
	if err == http.ErrMissingFile {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", &internal_errors.ValidationError{Message: "malformed upload"}
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return nil, "", &internal_errors.ValidationError{Message: "failed to read upload"}
	}
	return data, header.Filename, nil
}
