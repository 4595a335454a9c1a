package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/oraclegate/internal/admission"
	"github.com/user/oraclegate/internal/auth"
	"github.com/user/oraclegate/internal/bridge"
	"github.com/user/oraclegate/internal/server"
	"github.com/user/oraclegate/internal/state"
	"github.com/user/oraclegate/internal/sweeper"
	"github.com/user/oraclegate/internal/types"
	"github.com/user/oraclegate/internal/workflow"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway daemon",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	// Stores
	telemetry := state.NewTelemetry()
	sessions := state.NewSessions()
	threads := state.NewThreads(sessions)
	agents := state.NewAgents(telemetry, sessions)

	// Surface error events in the daemon log as they are recorded.
	telemetry.On("error", func(ev *types.TelemetryEvent) {
		slog.Warn("error event recorded", "agent_id", ev.AgentID, "data", ev.Data)
	})

	// Execution bridge
	runner := bridge.NewRunner(cfg.Bridge.Timeout, cfg.Bridge.MaxOutputBytes, cfg.Bridge.MaxConcurrent)

	// Workflow executors: every configured tool is runnable as a task type,
	// and the template task types bind to their backing tools.
	registry := workflow.NewRegistry()
	commands := make(map[string]bridge.Command, len(cfg.Tools))
	for name, tool := range cfg.Tools {
		cmd := bridge.Command{
			Path: tool.Command,
			Args: tool.Args,
			Env:  tool.Env,
		}
		commands[name] = cmd
		registry.Register(name, workflow.NewToolExecutor(runner, cmd))
	}
	workflow.BindPipeline(registry, runner, commands)
	workflows := workflow.NewService(registry, agents, telemetry)

	// Admission
	var verifiers auth.ChainVerifier
	if len(cfg.Auth.APIKeys) > 0 {
		verifiers = append(verifiers, auth.NewStaticVerifier(cfg.Auth.APIKeys))
	}
	if cfg.Auth.VerifyURL != "" {
		verifiers = append(verifiers, auth.NewHTTPVerifier(cfg.Auth.VerifyURL, cfg.Auth.VerifyTimeout))
	}
	authenticator := &auth.Selector{
		Signed: auth.NewSignedRequest(cfg.Auth.SharedSecret),
		Bearer: auth.NewBearerToken(verifiers),
	}
	admitter := admission.New(authenticator, admission.NewRateLimiter(admission.LimitsFrom(cfg.RateLimit)))

	srv := server.New(cfg, admitter, runner, sessions, threads, agents, telemetry, workflows)

	// Lifecycle sweeper
	sweep := sweeper.New(cfg.Lifecycle, sessions, threads, telemetry)
	if err := sweep.Start(); err != nil {
		return fmt.Errorf("start sweeper: %w", err)
	}
	defer sweep.Stop()

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("oraclegate started",
			"listen", cfg.ListenAddr,
			"log_level", cfg.LogLevel,
			"tools", len(cfg.Tools),
			"bridge_timeout", cfg.Bridge.Timeout,
			"max_concurrent", cfg.Bridge.MaxConcurrent,
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-sigChan:
		slog.Info("shutting down", "signal", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
