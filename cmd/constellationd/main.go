// Command constellationd runs the ConstellationFS tool-protocol server
// (spec §4.8) in either stdio (single-session) or HTTP (multi-session)
// mode, selecting a local or remote execution backend from REMOTE_VM_HOST
// (spec §6). Grounded on the teacher's cmd/ entrypoints' flag-driven
// bootstrap shape, adapted from a one-shot CLI runner to a long-lived
// server process.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aspects-ai/constellationfs/internal/constellation/config"
	"github.com/aspects-ai/constellationfs/internal/constellation/execapi"
	"github.com/aspects-ai/constellationfs/internal/constellation/localexec"
	"github.com/aspects-ai/constellationfs/internal/constellation/logging"
	"github.com/aspects-ai/constellationfs/internal/constellation/remotechannel"
	"github.com/aspects-ai/constellationfs/internal/constellation/remoteexec"
	"github.com/aspects-ai/constellationfs/internal/constellation/router"
	"github.com/aspects-ai/constellationfs/internal/constellation/toolserver"
)

const cfgShutdownGrace = 5 * time.Second

func main() {
	var (
		mode       = flag.String("mode", "stdio", "stdio or http")
		appID      = flag.String("app-id", "constellationfs", "application id scoping workspace paths")
		userID     = flag.String("user-id", "", "fixed user id (stdio mode only)")
		workspace  = flag.String("workspace", "default", "fixed workspace name (stdio mode only)")
		addr       = flag.String("addr", ":8443", "listen address (http mode only)")
		authToken  = flag.String("auth-token", "", "bearer token required on /mcp (http mode only)")
		configFile = flag.String("config", "", "optional TOML server config file")
	)
	flag.Parse()

	cfg, err := config.LoadServerConfig(*configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "constellationd: "+err.Error())
		os.Exit(1)
	}
	if os.Getenv("CONSTELLATION_DEBUG_LOGGING") == "true" {
		cfg.DebugLogging = true
	}
	if *authToken != "" {
		cfg.AuthToken = *authToken
	}

	logger := logging.New(os.Stderr, cfg.DebugLogging)

	if err := config.SetFromEnv(*appID); err != nil {
		logger.Error("configuration failed", "error", err)
		os.Exit(1)
	}
	workspaceRoot, err := config.WorkspaceRoot()
	if err != nil {
		logger.Error("configuration failed", "error", err)
		os.Exit(1)
	}

	executor, channel, backendKind, err := buildExecutor(cfg, logger)
	if err != nil {
		logger.Error("failed to build execution backend", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "stdio":
		runStdio(ctx, executor, channel, backendKind, workspaceRoot, *appID, *userID, *workspace, logger)
	case "http":
		runHTTP(ctx, executor, channel, backendKind, workspaceRoot, *appID, *addr, cfg.AuthToken, logger)
	default:
		fmt.Fprintln(os.Stderr, "constellationd: unknown -mode "+*mode+" (want stdio or http)")
		os.Exit(1)
	}
}

// buildExecutor selects the local or remote execapi.Executor per spec §6:
// REMOTE_VM_HOST present → remote; absent → local.
func buildExecutor(cfg config.ServerConfig, logger *slog.Logger) (execapi.Executor, router.Closer, router.Kind, error) {
	host, err := config.ParseRemoteVMHost()
	if err != nil {
		logger.Debug("REMOTE_VM_HOST not usable, defaulting to local backend", "detail", err)
		return localexec.New(cfg.Shell, cfg.MaxOutputLength, logger), nil, router.KindLocal, nil
	}

	rcCfg := remotechannel.Config{
		Host:              host.Host,
		Port:              host.Port,
		User:              host.User,
		Mode:              remotechannel.AuthPassword,
		Password:          os.Getenv("CONSTELLATION_SSH_PASSWORD"),
		KeepAliveInterval: cfg.KeepAliveInterval,
		OperationTimeout:  cfg.OperationTimeout,
	}
	if keyFile := os.Getenv("CONSTELLATION_SSH_PRIVATE_KEY_FILE"); keyFile != "" {
		keyPEM, readErr := os.ReadFile(keyFile)
		if readErr != nil {
			return nil, nil, "", fmt.Errorf("reading CONSTELLATION_SSH_PRIVATE_KEY_FILE: %w", readErr)
		}
		rcCfg.Mode = remotechannel.AuthKey
		rcCfg.PrivateKeyPEM = keyPEM
		rcCfg.Passphrase = os.Getenv("CONSTELLATION_SSH_PASSPHRASE")
	}

	manager := remotechannel.New(rcCfg, logger)
	return remoteexec.New(manager, cfg.MaxOutputLength, logger), manager, router.KindRemote, nil
}

func runStdio(ctx context.Context, executor execapi.Executor, channel router.Closer, kind router.Kind, workspaceRoot, appID, userID, workspaceName string, logger *slog.Logger) {
	if userID == "" {
		fmt.Fprintln(os.Stderr, "constellationd: -user-id is required in stdio mode")
		os.Exit(1)
	}

	rt, err := router.New(kind, executor, workspaceRoot, appID, userID, channel, logger)
	if err != nil {
		logger.Error("failed to build router", "error", err)
		os.Exit(1)
	}
	facade, err := rt.GetWorkspace(ctx, workspaceName, nil)
	if err != nil {
		logger.Error("failed to open workspace", "error", err)
		os.Exit(1)
	}

	session := &toolserver.Session{ID: "stdio", UserID: userID, Facade: facade, Router: rt}
	server := &toolserver.StdioServer{Session: session, Logger: logger}

	logger.Info("constellationd stdio mode ready", "user_id", userID, "workspace", workspaceName)
	if err := server.Serve(ctx, os.Stdin, os.Stdout); err != nil {
		logger.Error("stdio session ended with error", "error", err)
		os.Exit(1)
	}
}

func runHTTP(ctx context.Context, executor execapi.Executor, channel router.Closer, kind router.Kind, workspaceRoot, appID, addr, authToken string, logger *slog.Logger) {
	registry := toolserver.NewRegistry(logger)
	server := &toolserver.HTTPServer{
		AuthToken:     authToken,
		WorkspaceRoot: workspaceRoot,
		Registry:      registry,
		Logger:        logger,
		NewRouter: func(userID string) (*router.Router, error) {
			return router.New(kind, executor, workspaceRoot, appID, userID, channel, logger)
		},
	}

	httpServer := &http.Server{Addr: addr, Handler: server.Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfgShutdownGrace)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("constellationd http mode listening", "addr", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("http server exited", "error", err)
		os.Exit(1)
	}
}
