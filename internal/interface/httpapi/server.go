package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/rs/cors"

	"github.com/MasterCoderKay/patent-ai/internal/core/history"
	"github.com/MasterCoderKay/patent-ai/internal/core/patent"
)

// TaskRunner は HTTP 層から呼び出すアプリケーションサービス
// *patent.Service が実装する
type TaskRunner interface {
	Run(ctx context.Context, task patent.Task, in patent.Input) (*patent.Output, error)
	History(ctx context.Context) ([]history.Entry, error)
}

// Server は patent-ai の HTTP API サーバ
type Server struct {
	runner TaskRunner
	logger *slog.Logger

	provider           string
	upstreamConfigured bool
	allowedOrigins     []string
	shutdownTimeout    time.Duration

	startedAt time.Time
	now       func() time.Time
}

// Option は Server 構築時のオプション
type Option func(*Server)

// WithLogger はロガーを設定する
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithUpstream はヘルスチェックで報告する上流の情報を設定する
func WithUpstream(provider string, configured bool) Option {
	return func(s *Server) {
		s.provider = provider
		s.upstreamConfigured = configured
	}
}

// WithAllowedOrigins は CORS で許可するオリジンを設定する
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

// WithShutdownTimeout はグレースフルシャットダウンの待ち時間を設定する
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.shutdownTimeout = d
	}
}

// WithClock は稼働時間の計算に使う時計を差し替える
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// NewServer は Server を作成する
func NewServer(runner TaskRunner, opts ...Option) *Server {
	s := &Server{
		runner:          runner,
		logger:          slog.Default(),
		allowedOrigins:  []string{"*"},
		shutdownTimeout: 10 * time.Second,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.startedAt = s.now()

	return s
}

// Handler はミドルウェアを適用したルートハンドラを返す
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)

	c := cors.New(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
	})

	var h http.Handler = mux
	h = recoverPanic(s.logger, h)
	h = c.Handler(h)
	h = accessLog(s.logger, h)
	h = requestID(h)

	return h
}

// ListenAndServe は addr で待ち受け、ctx がキャンセルされるとグレースフルにシャットダウンする
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve は ln で待ち受ける
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	s.logger.Info("HTTPサーバを起動しました", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("HTTPサーバを停止します", "timeout", s.shutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown http server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}
