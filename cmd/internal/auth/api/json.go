package authapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// errorBody is the envelope for every non-2xx JSON response.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var errTrailingData = errors.New("trailing data after request object")

// respond writes v as JSON. Auth responses carry tokens, so none may be cached.
func respond(w http.ResponseWriter, status int, v any) {
	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("Cache-Control", "no-store")
	h.Set("Pragma", "no-cache")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func fail(w http.ResponseWriter, status int, code, msg string) {
	respond(w, status, errorBody{Error: errorDetail{Code: code, Message: msg}})
}

// readJSON decodes exactly one object of at most MaxBodyBytes into dst with
// unknown fields rejected. On failure it has already answered 400.
func (h *Handler) readJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeStrict(http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes), dst); err != nil {
		h.log.Debug("authapi.bad_body", "path", r.URL.Path, "err", err)
		fail(w, http.StatusBadRequest, "validation_error", "invalid request body")
		return false
	}
	return true
}

func decodeStrict(body io.ReadCloser, dst any) error {
	defer func() { _ = body.Close() }()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errTrailingData
	}
	return nil
}
