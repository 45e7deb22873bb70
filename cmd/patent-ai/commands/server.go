package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/MasterCoderKay/patent-ai/internal/interface/httpapi"
)

// ServerStartAction はHTTPサーバを起動するコマンドのアクション
// SIGINT/SIGTERM で ctx がキャンセルされるとグレースフルに停止する
func ServerStartAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	cfg := appCtx.Config
	port := cfg.Server.Port
	if p := int(cmd.Int("port")); p > 0 {
		port = p
	}

	server := httpapi.NewServer(appCtx.Container.Patent,
		httpapi.WithLogger(appCtx.Logger()),
		httpapi.WithUpstream(appCtx.Container.Provider(), cfg.UpstreamConfigured()),
		httpapi.WithAllowedOrigins(cfg.Server.CORSAllowedOrigins),
		httpapi.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
	)

	return server.ListenAndServe(ctx, fmt.Sprintf(":%d", port))
}
