package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/aegis-governance/aegis/api/audit"
	"github.com/aegis-governance/aegis/api/classify"
	"github.com/aegis-governance/aegis/api/config"
	"github.com/aegis-governance/aegis/api/controller"
	"github.com/aegis-governance/aegis/api/db"
	"github.com/aegis-governance/aegis/api/feedback"
	"github.com/aegis-governance/aegis/api/generation"
	logger "github.com/aegis-governance/aegis/api/logging"
	"github.com/aegis-governance/aegis/api/objectstore"
	"github.com/aegis-governance/aegis/api/pipeline"
	"github.com/aegis-governance/aegis/api/policy"
	"github.com/aegis-governance/aegis/api/risk"
	"github.com/aegis-governance/aegis/api/router"
	"github.com/aegis-governance/aegis/api/stage"
	"github.com/aegis-governance/aegis/api/util"

	"github.com/gin-gonic/gin"
)

func main() {
	// Initialize configuration
	if err := config.InitConfig(); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	// Initialize logger
	logger.InitLogger(config.GetString("log.dir"))
	defer logger.Sync()

	// Initialize Redis
	if err := db.InitRedis(); err != nil {
		logger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer db.CloseRedis()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize EventBus
	eventBus := util.NewEventBus()
	eventBus.Start(ctx)
	eventBus.Subscribe(util.EventAuditWriteFailed, func(ctx context.Context, _ util.Event) error {
		depth, err := db.FallbackDepth(ctx, config.GetString("audit.fallbackQueueKey"))
		if err != nil {
			return err
		}
		logger.Warn("Audit store write failed", zap.Int64("fallbackQueueDepth", depth))
		return nil
	})

	// Load the policy rule set: prefer the file on disk, fall back to the
	// Redis snapshot left by the last activation.
	ruleStore := policy.NewStore()
	ruleStore.OnSwap(func(rs *policy.RuleSet) {
		eventBus.Publish(ctx, util.EventRuleSetActivated, rs.Version)
	})
	if err := ruleStore.LoadFile(config.GetString("pipeline.ruleSetPath")); err != nil {
		logger.Warn("Failed to load rule set file, trying cached snapshot", zap.Error(err))
		rs, cacheErr := db.GetCachedRuleSet(ctx)
		if cacheErr != nil || rs == nil {
			logger.Fatal("No usable rule set available", zap.Error(err))
		}
		if err := ruleStore.Swap(rs); err != nil {
			logger.Fatal("Cached rule set failed validation", zap.Error(err))
		}
	}

	// Initialize external backends
	auditRepository, err := audit.NewElasticsearchRepository(
		config.GetString("elasticsearch.url"),
		config.GetString("audit.index"),
		config.GetString("audit.feedbackIndex"),
	)
	if err != nil {
		logger.Fatal("Failed to initialize Elasticsearch", zap.Error(err))
	}

	generator, err := generation.NewGeminiGenerator(ctx,
		os.Getenv("GEMINI_API_KEY"),
		config.GetString("generation.model"))
	if err != nil {
		logger.Fatal("Failed to initialize model client", zap.Error(err))
	}
	defer generator.Close()

	classifier, err := classify.NewComprehendClassifier(ctx, config.GetString("classifier.region"))
	if err != nil {
		logger.Fatal("Failed to initialize classifier", zap.Error(err))
	}

	payloadStore, err := objectstore.NewS3Store(ctx,
		config.GetString("objectstore.region"),
		config.GetString("objectstore.bucket"))
	if err != nil {
		logger.Warn("Object store unavailable, oversized payloads keep hashes only", zap.Error(err))
		payloadStore = nil
	}

	// Initialize the audit recorder
	fallbackQueue := audit.NewRedisFallbackQueue(config.GetString("audit.fallbackQueueKey"))
	auditService := audit.NewService(auditRepository, storeOrNil(payloadStore), fallbackQueue, eventBus, audit.ServiceConfig{
		WriteTimeout:    config.GetDuration("audit.writeTimeout"),
		RetryAttempts:   config.GetInt("audit.retryAttempts"),
		RetryBaseDelay:  config.GetDuration("audit.retryBaseDelay"),
		InlineSizeLimit: config.GetInt("audit.inlineSizeLimit"),
		DefaultTTL:      config.GetDuration("audit.retentionTTL"),
		FrameworkTTLs: map[string]time.Duration{
			"gdpr":  config.GetDuration("audit.retentionTTL"),
			"hipaa": config.GetDuration("audit.retentionTTLHipaa"),
			"sox":   config.GetDuration("audit.retentionTTLSox"),
		},
	})
	feedbackService := feedback.NewService(auditRepository, eventBus)

	// Initialize pipeline stages
	scorer := risk.NewScorer(risk.ScorerConfig{
		MaxTextLength:        config.GetInt("risk.maxTextLength"),
		ToxicityThreshold:    config.GetFloat64("risk.toxicityThreshold"),
		EntityScoreThreshold: config.GetFloat64("risk.entityScoreThreshold"),
	})
	stageCfg := stage.Config{
		WarnThreshold:     config.GetInt("risk.warnThreshold"),
		BlockThreshold:    config.GetInt("risk.blockThreshold"),
		ClassifierTimeout: config.GetDuration("risk.classifierTimeout"),
	}
	promptGuard := stage.NewPromptGuard(scorer, ruleStore, classifier, stageCfg)
	outputAuditor := stage.NewOutputAuditor(scorer, ruleStore, classifier, stageCfg)
	enforcer := stage.NewEnforcer(
		config.GetStringSlice("pipeline.regulatedDomains"),
		config.GetStringMapStringSlice("pipeline.domainWhitelist"),
	)
	advisor := stage.NewAdvisor()

	orchestrator := pipeline.NewOrchestrator(
		promptGuard,
		outputAuditor,
		enforcer,
		advisor,
		generator,
		auditService,
		eventBus,
		pipeline.Config{
			StageTimeout:      config.GetDuration("pipeline.stageTimeout"),
			GenerationTimeout: config.GetDuration("generation.timeout"),
		},
	)

	// Initialize controllers
	controllers := controller.InitializeControllers(orchestrator, ruleStore, auditService, feedbackService, fallbackQueue)

	// Set up Gin
	gin.SetMode(gin.ReleaseMode)
	engine := router.SetupRouter(controllers, 100, time.Minute) // 100 requests per minute

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", config.GetString("server.port")),
		Handler: engine,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("Starting server", zap.String("port", config.GetString("server.port")))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}

// storeOrNil keeps the typed-nil S3 pointer from sneaking into the
// objectstore.Store interface.
func storeOrNil(s *objectstore.S3Store) objectstore.Store {
	if s == nil {
		return nil
	}
	return s
}
