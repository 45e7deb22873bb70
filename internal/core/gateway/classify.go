package gateway

import (
	"errors"
	"net/http"
)

// errorClass は失敗した試行をリトライすべきかどうかの分類
type errorClass int

const (
	// classTransient はネットワーク障害やタイムアウト、429/5xx などの一時的な失敗
	classTransient errorClass = iota

	// classRejected は上流がリクエスト自体を拒否した (何度送っても同じ結果になる)
	classRejected

	// classMalformed は上流のレスポンスが解釈できない
	classMalformed
)

func (c errorClass) String() string {
	switch c {
	case classRejected:
		return "rejected"
	case classMalformed:
		return "malformed"
	default:
		return "transient"
	}
}

// classify はエラーを分類する
// 分類できないエラー (接続断など) は一時的な失敗として扱う
func classify(err error) errorClass {
	if errors.Is(err, ErrMalformedResponse) {
		return classMalformed
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return classifyStatus(statusErr.StatusCode)
	}

	return classTransient
}

func classifyStatus(code int) errorClass {
	switch {
	case code == http.StatusRequestTimeout,
		code == http.StatusConflict,
		code == http.StatusTooManyRequests:
		return classTransient
	case code >= 500:
		return classTransient
	case code >= 400:
		return classRejected
	default:
		return classTransient
	}
}
