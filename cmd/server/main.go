package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"certo/internal/accesstoken"
	accesstokenhandler "certo/internal/accesstoken/handler"
	"certo/internal/audit"
	"certo/internal/catalog"
	"certo/internal/distill"
	"certo/internal/domestic"
	"certo/internal/eusign"
	"certo/internal/issuance"
	issuancehandler "certo/internal/issuance/handler"
	"certo/internal/platform/config"
	"certo/internal/platform/httpserver"
	"certo/internal/platform/logger"
	"certo/internal/platform/metrics"
	"certo/internal/platform/redis"
	"certo/internal/session"
	"certo/internal/signer"
	httptransport "certo/internal/transport/http"
	"certo/internal/ucilog"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal feature packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	cat, err := catalog.Load(cfg.Catalog)
	if err != nil {
		log.Error("catalog load failed", "error", err)
		os.Exit(1)
	}

	signerClient, err := signer.NewClient(signer.Options{
		Timeout:      cfg.Signer.Timeout,
		MaxAttempts:  cfg.Signer.MaxAttempts,
		CABundlePath: cfg.Signer.CABundle,
	}, log)
	if err != nil {
		log.Error("signer client init failed", "error", err)
		os.Exit(1)
	}
	domesticSigner := signer.NewDomesticClient(signerClient,
		cfg.Signer.DomesticPrepareIssueURL,
		cfg.Signer.DomesticSigningURL,
		cfg.Signer.DomesticPaperURL,
	)
	europeanSigner := signer.NewEuropeanClient(signerClient, cfg.Signer.EuropeanSigningURL)

	sessions := session.NewRedisStore(redisClient, cfg.Session.KeyPrefix, cfg.Session.Expiration)

	uciLog := newUCILog(cfg, log)
	auditor := newAuditor(cfg, log)
	defer auditor.Close()

	pipeline := distill.New(cat, log, cfg.DedupMarginDays)
	builder := eusign.NewBuilder(eusign.Config{
		ExpirationDays:           cfg.European.ExpirationDays,
		Issuer:                   cfg.European.Issuer,
		Country:                  cfg.European.Country,
		PositiveTestRecoveryDays: cfg.Domestic.PositiveTestRecoveryDays,
		PositiveTestValidityDays: cfg.Domestic.PositiveTestValidityDays,
	}, log)

	issuanceMetrics := issuance.NewMetrics()
	issuanceService := issuance.NewService(
		sessions, domesticSigner, europeanSigner, pipeline, builder, cat,
		uciLog, auditor,
		domestic.Validity{
			VaccinationDays:          cfg.Domestic.VaccinationValidityDays,
			PositiveTestRecoveryDays: cfg.Domestic.PositiveTestRecoveryDays,
			PositiveTestValidityDays: cfg.Domestic.PositiveTestValidityDays,
			NegativeTestHours:        cfg.Domestic.NegativeTestValidityHrs,
		},
		domestic.LayoutConfig{
			StripValidityHours:      cfg.Domestic.StripValidityHours,
			MaxIssuanceDays:         cfg.Domestic.MaxIssuanceDays,
			MaxRandomizedOverlapHrs: cfg.Domestic.MaxRandomOverlapHours,
		},
		issuanceMetrics, log,
	)

	accessService := newAccessService(cfg, log)

	health := httptransport.NewHealthHandler(log, map[string]httptransport.HealthChecker{
		"redis": redisClient,
	})

	features := []httptransport.Registrar{
		issuancehandler.New(issuanceService, log, issuanceMetrics),
	}
	if accessService != nil {
		features = append(features, accesstokenhandler.New(accessService, log))
	}
	router := httptransport.NewRouter(health, metrics.New(), features...)

	srv := httpserver.New(cfg.Addr, router, cfg.Signer.Timeout)

	log.Info("starting certo", "addr", cfg.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}

// newUCILog selects the postgres store when a DSN is configured, falling back
// to the in-memory store for development.
func newUCILog(cfg config.Config, log *slog.Logger) ucilog.Store {
	if cfg.UCILog.PostgresDSN == "" {
		log.Warn("uci log running in-memory; configure UCI_LOG_POSTGRES_DSN for persistence")
		return ucilog.NewMemory()
	}
	db, err := ucilog.Open(cfg.UCILog.PostgresDSN)
	if err != nil {
		log.Error("uci log store init failed", "error", err)
		os.Exit(1)
	}
	return ucilog.NewPostgres(db)
}

func newAuditor(cfg config.Config, log *slog.Logger) audit.Publisher {
	if len(cfg.Audit.Brokers) == 0 {
		return audit.NoopPublisher{}
	}
	publisher, err := audit.NewKafkaPublisher(cfg.Audit.Brokers, cfg.Audit.Topic, log)
	if err != nil {
		log.Error("audit publisher init failed", "error", err)
		os.Exit(1)
	}
	return publisher
}

// newAccessService returns nil when the access-token path is not configured;
// the endpoint is then simply not mounted.
func newAccessService(cfg config.Config, log *slog.Logger) *accesstoken.Service {
	if cfg.Access.BSNRetrievalURL == "" || cfg.Access.TVSSigningKey == "" {
		log.Warn("access token path disabled; missing BSN_RETRIEVAL_URL or TVS_JWT_SIGNING_KEY")
		return nil
	}
	providers, err := accesstoken.LoadProviders(cfg.Access.ProvidersPath)
	if err != nil {
		log.Error("provider registry load failed", "error", err)
		os.Exit(1)
	}
	retriever := accesstoken.NewHTTPRetriever(cfg.Access.BSNRetrievalURL, cfg.Signer.Timeout)
	return accesstoken.NewService([]byte(cfg.Access.TVSSigningKey), retriever, providers, cfg.Access.TokenTTL, log)
}
