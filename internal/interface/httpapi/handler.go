package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MasterCoderKay/patent-ai/internal/core/gateway"
)

// StatusClientClosedRequest は呼び出し元が応答前に切断した場合のステータス
const StatusClientClosedRequest = 499

// maxBodyBytes はリクエストボディの上限
const maxBodyBytes = 1 << 20

const (
	statusSuccess = "success"
	statusError   = "error"
)

// appError はハンドラが返すエラー
// Message はクライアントに返す文言、Err はログにだけ残す詳細
type appError struct {
	Err     error
	Message string
	Code    int
}

// appHandler はエラーを返すハンドラ
type appHandler struct {
	fn     func(http.ResponseWriter, *http.Request) *appError
	logger *slog.Logger
}

func (h appHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	appErr := h.fn(w, r)
	if appErr == nil {
		return
	}

	attrs := []any{
		"method", r.Method,
		"path", r.URL.Path,
		"status", appErr.Code,
		"requestId", RequestIDFromContext(r.Context()),
	}
	if appErr.Err != nil {
		attrs = append(attrs, "error", appErr.Err)
	}

	switch {
	case appErr.Code >= http.StatusInternalServerError:
		h.logger.Error("request failed", attrs...)
	default:
		h.logger.Warn("request rejected", attrs...)
	}

	writeJSON(w, appErr.Code, errorResponse{Status: statusError, Message: appErr.Message})
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// toAppError はサービス層のエラーをHTTPの応答に変換する
// 変換はこの境界で1度だけ行う
func toAppError(r *http.Request, err error) *appError {
	if svcErr, ok := gateway.AsServiceError(err); ok {
		switch svcErr.Kind {
		case gateway.KindClientInput:
			return &appError{Err: err, Message: svcErr.Message, Code: http.StatusBadRequest}
		case gateway.KindUpstreamUnavailable:
			return &appError{
				Err:     err,
				Message: fmt.Sprintf("AI service unavailable after %d attempt(s), please retry later", svcErr.Attempts),
				Code:    http.StatusServiceUnavailable,
			}
		default:
			return internalError(err)
		}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		if r.Context().Err() != nil {
			return &appError{Err: err, Message: "client closed request", Code: StatusClientClosedRequest}
		}
	}

	return internalError(err)
}

func internalError(err error) *appError {
	return &appError{Err: err, Message: "internal server error", Code: http.StatusInternalServerError}
}

func badRequest(format string, args ...any) *appError {
	msg := fmt.Sprintf(format, args...)
	return &appError{Err: errors.New(msg), Message: msg, Code: http.StatusBadRequest}
}

// decodeJSON はリクエストボディを厳密にデコードする
// 未知のフィールド、空のボディ、後続データはすべて 400 とする
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) *appError {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		var maxErr *http.MaxBytesError

		switch {
		case errors.Is(err, io.EOF):
			return badRequest("request body is required")
		case errors.As(err, &syntaxErr):
			return badRequest("malformed JSON at offset %d", syntaxErr.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return badRequest("malformed JSON")
		case errors.As(err, &typeErr):
			return badRequest("invalid type for field %q", typeErr.Field)
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			field := strings.TrimPrefix(err.Error(), "json: unknown field ")
			return badRequest("unknown field %s", field)
		case errors.As(err, &maxErr):
			return badRequest("request body must not exceed %d bytes", maxErr.Limit)
		default:
			return badRequest("invalid request body")
		}
	}

	if dec.More() {
		return badRequest("request body must contain a single JSON object")
	}

	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
