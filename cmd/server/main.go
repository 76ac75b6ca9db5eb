package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/living-blueprint/internal/audit"
	"github.com/danielpatrickdp/living-blueprint/internal/model"
	"github.com/danielpatrickdp/living-blueprint/internal/orchestrator"
	"github.com/danielpatrickdp/living-blueprint/internal/server"
	"github.com/danielpatrickdp/living-blueprint/internal/store"
)

// #region config

type config struct {
	Addr      string
	DBPath    string
	APIKey    string
	Model     string
	CacheSize int
}

func loadConfig() config {
	v := viper.New()
	v.SetEnvPrefix("BLUEPRINT")
	v.AutomaticEnv()
	v.SetDefault("addr", ":8080")
	v.SetDefault("db", "blueprint.db")
	v.SetDefault("model", "")
	v.SetDefault("cache_size", 1)

	// The key follows the Gemini convention rather than the app prefix.
	v.BindEnv("api_key", "GEMINI_API_KEY")

	return config{
		Addr:      v.GetString("addr"),
		DBPath:    v.GetString("db"),
		APIKey:    v.GetString("api_key"),
		Model:     v.GetString("model"),
		CacheSize: v.GetInt("cache_size"),
	}
}

// #endregion config

// #region main

func main() {
	logCfg := zap.NewProductionConfig()
	log, err := logCfg.Build()
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	cfg := loadConfig()

	st, err := store.NewStore(cfg.DBPath)
	if err != nil {
		log.Fatal("failed to open store", zap.String("db", cfg.DBPath), zap.Error(err))
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := model.NewClient(ctx, model.Config{APIKey: cfg.APIKey, Model: cfg.Model}, cfg.CacheSize, log)
	if err != nil {
		log.Fatal("failed to create model client", zap.Error(err))
	}
	defer client.Close(context.Background())

	orch := orchestrator.NewOrchestrator(st, client, log)
	auditLog, err := audit.NewLog(st.DB())
	if err != nil {
		log.Fatal("failed to create audit log", zap.Error(err))
	}
	orch.SetAuditLog(auditLog)
	srv := server.NewServer(orch, st, log)

	httpSrv := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv.Handler(),
	}

	go func() {
		log.Info("listening", zap.String("addr", cfg.Addr), zap.String("db", cfg.DBPath))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown incomplete", zap.Error(err))
	}
}

// #endregion main
