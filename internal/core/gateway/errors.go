package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrAPIKeyNotSet はAPIキーが設定されていない場合のエラー
	ErrAPIKeyNotSet = errors.New("LLM API key not set")

	// ErrMalformedResponse は上流のレスポンスが解釈できない場合のエラー
	ErrMalformedResponse = errors.New("malformed upstream response")

	// ErrMaxRetriesExceeded は最大試行回数を超えた場合のエラー
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

// Kind はサービスエラーの種類
type Kind string

const (
	// KindClientInput は必須項目の欠落など呼び出し側の入力不備 (4xx, リトライしない)
	KindClientInput Kind = "client_input"

	// KindUpstreamUnavailable は上流が利用できない (503)
	KindUpstreamUnavailable Kind = "upstream_unavailable"

	// KindInternal は想定外の内部エラー (500)
	KindInternal Kind = "internal"
)

// ServiceError は境界でHTTPステータスへ変換される構造化エラー
type ServiceError struct {
	Kind     Kind
	Message  string
	Attempts int
	Err      error
}

func (e *ServiceError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case KindUpstreamUnavailable:
		if e.Err != nil {
			return fmt.Sprintf("upstream unavailable after %d attempt(s): %v", e.Attempts, e.Err)
		}
		return fmt.Sprintf("upstream unavailable after %d attempt(s)", e.Attempts)
	case KindClientInput:
		return "invalid input: " + e.Message
	default:
		if e.Err != nil {
			return "internal error: " + e.Err.Error()
		}
		return "internal error: " + e.Message
	}
}

func (e *ServiceError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// LastError は最後に観測されたエラーメッセージを返す
func (e *ServiceError) LastError() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// HTTPStatus はエラー種別に対応するHTTPステータスコードを返す
func (e *ServiceError) HTTPStatus() int {
	if e == nil {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindClientInput:
		return http.StatusBadRequest
	case KindUpstreamUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// InvalidInput は入力不備を表す ServiceError を生成する
func InvalidInput(format string, args ...any) *ServiceError {
	return &ServiceError{Kind: KindClientInput, Message: fmt.Sprintf(format, args...)}
}

// Internal は内部エラーを表す ServiceError を生成する
func Internal(err error) *ServiceError {
	return &ServiceError{Kind: KindInternal, Message: "internal error", Err: err}
}

// StatusError は上流が非2xxのステータスを返したことを表す
// Transport 実装はプロバイダ固有のエラーをこの型に変換する
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Message)
}

// AsServiceError は err から ServiceError を取り出す
func AsServiceError(err error) (*ServiceError, bool) {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr, true
	}
	return nil, false
}
