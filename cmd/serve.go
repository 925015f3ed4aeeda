package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/prograin/agent-backend/internal/agent"
	"github.com/prograin/agent-backend/internal/config"
	"github.com/prograin/agent-backend/internal/db"
	"github.com/prograin/agent-backend/internal/interactions"
	"github.com/prograin/agent-backend/internal/llm"
	"github.com/prograin/agent-backend/internal/server"
	syncpkg "github.com/prograin/agent-backend/internal/sync"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ProGrain agent backend server",
	Long:  `Starts the HTTP server that ingests marketplace sync events and serves the chat and listing-suggestion endpoints.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		if servePort != 0 {
			cfg.Port = servePort
		}

		database, err := db.Open(filepath.Join(cfg.DataDir, "prograin.db"))
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer database.Close()

		provider, err := llm.NewProvider(string(cfg.Provider), cfg.Model)
		if err != nil {
			return fmt.Errorf("creating LLM provider: %w", err)
		}
		if cfg.ProviderRPM > 0 {
			provider = llm.NewRateLimitedProvider(provider, cfg.ProviderRPM)
		}

		srv := server.New(server.Config{
			Port:     cfg.Port,
			Secret:   cfg.SharedSecret,
			AllowAll: cfg.AllowAllOrigins,
		}, database)

		syncStore := syncpkg.NewStore(srv.Database())
		syncpkg.RegisterRoutes(srv.Protected(), syncStore)

		recorder := interactions.NewStore(srv.Database())
		interactions.RegisterRoutes(srv.Protected(), recorder)

		svc := agent.NewService(agent.Options{
			Provider:        provider,
			Model:           cfg.Model,
			Store:           syncStore,
			Recorder:        recorder,
			DefaultLanguage: cfg.DefaultLanguage,
			ProviderTimeout: time.Duration(cfg.ProviderTimeoutSecs) * time.Second,
		})
		agent.RegisterRoutes(srv.Protected(), svc)

		// Run until interrupted, then drain in-flight requests.
		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start() }()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case sig := <-sigCh:
			log.Printf("received %s, shutting down", sig)
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		}
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "override the configured listen port")
	rootCmd.AddCommand(serveCmd)
}
