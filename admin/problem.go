// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/z5labs/drain/registry"
)

// ProblemDetail is an RFC 7807 error response body.
type ProblemDetail struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (p ProblemDetail) Error() string {
	if p.Detail != "" {
		return p.Detail
	}
	return p.Title
}

func badRequest(detail string) ProblemDetail {
	return ProblemDetail{
		Type:   "about:blank",
		Title:  "Bad Request",
		Status: http.StatusBadRequest,
		Detail: detail,
	}
}

func unsupportedMediaType(contentType string) ProblemDetail {
	return ProblemDetail{
		Type:   "about:blank",
		Title:  "Unsupported Media Type",
		Status: http.StatusUnsupportedMediaType,
		Detail: "expected application/json but got " + contentType,
	}
}

// problemFor maps err onto the response sent to the client. Unknown errors
// become a 500 without leaking their message.
func problemFor(err error) (ProblemDetail, bool) {
	var pd ProblemDetail
	switch {
	case errors.As(err, &pd):
		return pd, true
	case errors.Is(err, registry.ErrInvalidVersion):
		return badRequest(err.Error()), true
	case errors.Is(err, registry.ErrVersionLive), errors.Is(err, registry.ErrVersionNotActive):
		return ProblemDetail{
			Type:   "about:blank",
			Title:  "Conflict",
			Status: http.StatusConflict,
			Detail: err.Error(),
		}, true
	default:
		return ProblemDetail{
			Type:   "about:blank",
			Title:  "Internal Server Error",
			Status: http.StatusInternalServerError,
			Detail: "An internal server error occurred.",
		}, false
	}
}

func (api *Api[T]) writeProblem(ctx context.Context, w http.ResponseWriter, err error) {
	pd, known := problemFor(err)
	if !known {
		api.log.ErrorContext(ctx, "failed to handle request", slog.Any("error", err))
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(pd.Status)
	encErr := json.NewEncoder(w).Encode(pd)
	if encErr != nil {
		api.log.ErrorContext(ctx, "failed to encode problem details", slog.Any("error", encErr))
	}
}
