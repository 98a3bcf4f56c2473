package cmd

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

	"github.com/abhisek/pathwise/internal/api"
	"github.com/abhisek/pathwise/internal/curriculum"
	"github.com/abhisek/pathwise/internal/engine"
	"github.com/abhisek/pathwise/internal/generator"
	"github.com/abhisek/pathwise/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		curDir, _ := cmd.Flags().GetString("curriculum")

		log := slog.New(slog.NewTextHandler(os.Stderr, nil))
		slog.SetDefault(log)

		cur, err := curriculum.Load(curDir)
		if err != nil {
			return fmt.Errorf("load curriculum: %w", err)
		}

		dbPath, err := resolveDBPath(cmd)
		if err != nil {
			return fmt.Errorf("resolve database path: %w", err)
		}
		st, err := store.Open(dbPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer st.Close()

		ctx := cmd.Context()
		cfg := generator.ConfigFromEnv()
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("generator config: %w", err)
		}
		provider, err := generator.NewProvider(ctx, cfg, st.EventRepo())
		if err != nil {
			return fmt.Errorf("init generator: %w", err)
		}
		judge := generator.NewEquivalenceJudge(provider, generator.DefaultJudgeConfig())

		eng := engine.New(cur, provider, judge, engine.ReposFrom(st), engine.WithLogger(log))
		srv := &http.Server{
			Addr:              addr,
			Handler:           api.NewServer(eng, log).Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info("listening", "addr", addr, "db", dbPath, "provider", cfg.Provider)
			errCh <- srv.ListenAndServe()
		}()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case sig := <-stop:
			log.Info("shutting down", "signal", sig.String())
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		}
	},
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "Listen address")
}
