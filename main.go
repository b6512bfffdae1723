package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	apihttp "aquawatch/internal/api/http"
	"aquawatch/internal/archive"
	"aquawatch/internal/artifacts"
	"aquawatch/internal/auth"
	"aquawatch/internal/decision"
	"aquawatch/internal/dispatch"
	"aquawatch/internal/ingest"
	"aquawatch/internal/observability/metrics"
	"aquawatch/internal/pipeline"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)
	metrics.Init()

	store, err := artifacts.Load(cfg.ArtifactsDir)
	if err != nil {
		logger.Fatalf("load model artifacts error: %v", err)
	}
	logger.Printf("model artifacts loaded: %s", store.Versions())

	pipeCfg, err := pipeline.LoadConfig()
	if err != nil {
		logger.Fatalf("pipeline config error: %v", err)
	}
	if size := store.Forecaster().WindowSize(); size != pipeCfg.WindowSize {
		logger.Printf("window size %d from forecast model overrides configured %d", size, pipeCfg.WindowSize)
	}

	engine, err := decision.NewEngine(
		decision.WithFlowThreshold(pipeCfg.FlowThreshold),
		decision.WithAnomalyCutoff(pipeCfg.AnomalyCutoff),
	)
	if err != nil {
		logger.Fatalf("decision engine error: %v", err)
	}

	alertLog, err := dispatch.OpenCSVLog(cfg.AlertLogPath)
	if err != nil {
		logger.Fatalf("open alert log error: %v", err)
	}
	defer alertLog.Close()

	dispatchOpts := []dispatch.Option{dispatch.WithDeliveryTimeout(cfg.AlertDeliveryTimeout)}
	if cfg.AlertWebhookURL != "" {
		channel, err := dispatch.NewWebhookChannel(cfg.AlertWebhookURL)
		if err != nil {
			logger.Fatalf("alert webhook error: %v", err)
		}
		dispatchOpts = append(dispatchOpts, dispatch.WithChannel(channel))
	} else {
		logger.Printf("ALERT_WEBHOOK_URL not set, alerts are logged only")
	}
	if cfg.AlertNotifyTemplate != "" {
		template, err := dispatch.NewTemplate(cfg.AlertNotifyTemplate)
		if err != nil {
			logger.Fatalf("alert template error: %v", err)
		}
		dispatchOpts = append(dispatchOpts, dispatch.WithTemplate(template))
	}
	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		repo, err := archive.Open(ctx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			logger.Fatalf("alert archive error: %v", err)
		}
		defer repo.Close()
		dispatchOpts = append(dispatchOpts, dispatch.WithArchiver(repo))
	}

	dispatcher, err := dispatch.NewDispatcher(alertLog, logger, dispatchOpts...)
	if err != nil {
		logger.Fatalf("alert dispatcher error: %v", err)
	}

	service, err := pipeline.NewService(
		store.Scaler(),
		store.Scorer(),
		store.Forecaster(),
		engine,
		dispatcher,
		pipeCfg.StepInterval,
		logger,
	)
	if err != nil {
		logger.Fatalf("pipeline service error: %v", err)
	}

	ingestHandler, err := ingest.NewHandler(service, logger)
	if err != nil {
		logger.Fatalf("ingest handler error: %v", err)
	}
	forecastHandler, err := apihttp.NewForecastHandler(service, pipeCfg.Horizon)
	if err != nil {
		logger.Fatalf("forecast handler error: %v", err)
	}
	alertsHandler, err := apihttp.NewAlertsHandler(alertLog)
	if err != nil {
		logger.Fatalf("alerts handler error: %v", err)
	}
	exportXLSX, err := apihttp.NewExportAlertsHandler(alertLog, "xlsx")
	if err != nil {
		logger.Fatalf("alerts export handler error: %v", err)
	}
	exportPDF, err := apihttp.NewExportAlertsHandler(alertLog, "pdf")
	if err != nil {
		logger.Fatalf("alerts export handler error: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/ingest", ingestHandler)
	mux.Handle("/api/v1/forecast", forecastHandler)
	mux.Handle("/api/v1/alerts", alertsHandler)
	mux.Handle("/api/v1/alerts/export.xlsx", exportXLSX)
	mux.Handle("/api/v1/alerts/export.pdf", exportPDF)
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", apihttp.HealthzHandler{})

	var handler http.Handler = mux
	if cfg.JWTSecret != "" {
		policy := auth.NewDefaultPolicy([]string{"/ingest", "/healthz", "/metrics"}, nil)
		handler = auth.NewMiddleware([]byte(cfg.JWTSecret), policy).Wrap(mux)
	} else {
		logger.Printf("AUTH_JWT_SECRET not set, operator API is open")
	}

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(handler, logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	HTTPAddr             string
	ArtifactsDir         string
	AlertLogPath         string
	AlertWebhookURL      string
	AlertNotifyTemplate  string
	AlertDeliveryTimeout time.Duration
	DatabaseURL          string
	JWTSecret            string
}

func loadConfig() config {
	cfg := config{
		HTTPAddr:             getenvDefault("HTTP_ADDR", ":8080"),
		ArtifactsDir:         getenvDefault("ARTIFACTS_DIR", ""),
		AlertLogPath:         getenvDefault("ALERT_LOG_PATH", "leak_alert_log.csv"),
		AlertWebhookURL:      getenvDefault("ALERT_WEBHOOK_URL", ""),
		AlertNotifyTemplate:  getenvDefault("ALERT_NOTIFY_TEMPLATE", ""),
		AlertDeliveryTimeout: getenvDuration("ALERT_DELIVERY_TIMEOUT", 10*time.Second),
		DatabaseURL:          getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		JWTSecret:            getenvDefault("AUTH_JWT_SECRET", ""),
	}
	if cfg.ArtifactsDir == "" {
		log.Fatal("ARTIFACTS_DIR is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
