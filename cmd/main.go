package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/ailens-auth/config"
	"github.com/oksasatya/ailens-auth/internal/application"
	"github.com/oksasatya/ailens-auth/internal/container"
	"github.com/oksasatya/ailens-auth/internal/domain/entity"
	"github.com/oksasatya/ailens-auth/internal/domain/repository"
	esinfra "github.com/oksasatya/ailens-auth/internal/infrastructure/elasticsearch"
	"github.com/oksasatya/ailens-auth/internal/infrastructure/google"
	"github.com/oksasatya/ailens-auth/internal/infrastructure/memory"
	"github.com/oksasatya/ailens-auth/internal/infrastructure/notify"
	pginfra "github.com/oksasatya/ailens-auth/internal/infrastructure/postgres"
	redisinfra "github.com/oksasatya/ailens-auth/internal/infrastructure/redis"
	"github.com/oksasatya/ailens-auth/internal/interface/middleware"
	"github.com/oksasatya/ailens-auth/internal/router"
	"github.com/oksasatya/ailens-auth/pkg/helpers"
	mailtpl "github.com/oksasatya/ailens-auth/pkg/mailer/templates"
	"github.com/oksasatya/ailens-auth/pkg/validation"
)

func main() {
	_ = godotenv.Load() // load .env if present

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	logger := helpers.NewLogger(cfg.AppName, cfg.Env)
	gin.SetMode(cfg.GinMode)
	validation.Init()

	ctx := context.Background()
	container.SetConfig(cfg)
	container.SetLogger(logger)

	// Account store
	var repo repository.AccountRepository
	switch cfg.StoreDriver {
	case "memory":
		logger.Warn("STORE_DRIVER=memory; accounts are lost on restart")
		repo = memory.NewAccountRepository()
	default:
		pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), pginfra.PoolOptions{
			MaxConns:    cfg.DBMaxConns,
			MinConns:    cfg.DBMinConns,
			MaxConnLife: cfg.DBMaxConnLife,
		})
		if err != nil {
			logger.WithError(err).Fatal("failed to connect to postgres")
		}
		defer pool.Close()
		if err := pginfra.Migrate(cfg.PostgresDSN(), cfg.MigrationsDir, logger); err != nil {
			logger.WithError(err).Fatal("migration failed")
		}
		container.SetPGPool(pool)
		repo = pginfra.NewAccountRepository(pool)
	}

	// Redis: rate limiting and token revocation; optional
	var revoker application.TokenRevoker
	rdb, err := helpers.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		helpers.LogOptional(logger, "redis", err)
	} else {
		defer func() { _ = rdb.Close() }()
		container.SetRedis(rdb)
		revoker = redisinfra.NewRevocationStore(rdb)
	}
	container.SetRevoker(revoker)

	// OTP delivery: email worker via RabbitMQ, or the log
	var notifier application.OTPNotifier = &notify.LogNotifier{Logger: logger, Reveal: cfg.OTPExpose}
	if cfg.RabbitMQURL != "" {
		pub, err := helpers.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQEmailQueue)
		if err != nil {
			helpers.LogOptional(logger, "rabbitmq", err)
		} else {
			defer pub.Close()
			container.SetRabbitPub(pub)
			notifier = notify.NewQueueNotifier(pub, mailtpl.Branding{
				AppName:        cfg.AppName,
				CompanyName:    cfg.CompanyName,
				CompanyAddress: cfg.CompanyAddress,
				LogoURL:        cfg.LogoURL,
				SupportURL:     cfg.SupportURL,
			})
		}
	}

	// Audit trail in Elasticsearch; optional
	var (
		audit   application.AuditSink
		history application.AuditReader
	)
	if cfg.AuditEnabled {
		es, err := helpers.NewESClient(cfg.ESAddrs(), cfg.ElasticsearchUser, cfg.ElasticsearchPass)
		if err == nil {
			err = helpers.PingES(ctx, es)
		}
		if err != nil {
			helpers.LogOptional(logger, "elasticsearch", err)
		} else {
			container.SetES(es)
			sink := esinfra.NewAuditSink(es, cfg.ESAuditIndex, logger)
			audit, history = sink, sink
		}
	}

	// Google sign-in
	var verifier application.AssertionVerifier
	if aud := cfg.GoogleAudiences(); len(aud) > 0 {
		v, err := google.NewVerifier(ctx, aud, nil, logger)
		if err != nil {
			logger.WithError(err).Fatal("failed to init google verifier")
		}
		verifier = v
	} else {
		logger.Info("GOOGLE_CLIENT_IDS not set; /auth/google is disabled")
	}

	hasher, err := helpers.NewPasswordHasher(cfg.BcryptCost)
	if err != nil {
		logger.WithError(err).Fatal("invalid bcrypt cost")
	}
	tokens := helpers.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL, cfg.JWTIssuer)
	container.SetJWT(tokens)

	svc := application.NewService(application.Deps{
		Repo:      repo,
		Hasher:    hasher,
		Tokens:    tokens,
		Verifier:  verifier,
		Notifier:  notifier,
		Revoker:   revoker,
		Audit:     audit,
		History:   history,
		Logger:    logger,
		Policy:    entity.LockPolicy{Threshold: cfg.LockThreshold, Window: cfg.LockWindow},
		OTPTTL:    cfg.OTPTTL,
		OTPLength: cfg.OTPLength,
		ExposeOTP: cfg.OTPExpose,
	})
	container.SetService(svc)

	// Gin engine and global middleware
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.RealIP(cfg.TrustProxyHeaders))
	r.Use(middleware.RequestMeta())
	// CORS
	corsCfg := cors.Config{
		AllowOrigins:     cfg.CORSOrigins(),
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(corsCfg.AllowOrigins) == 0 {
		corsCfg.AllowOrigins = nil
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	}
	r.Use(cors.New(corsCfg))
	if cfg.HTTPLogEnabled || cfg.IsDevelopment() {
		r.Use(gin.Logger())
	}

	// Registry: auto-register modules using container
	reg := router.NewRegistry(r, "")
	router.InitModules(reg)
	reg.RegisterAll()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.WithFields(logrus.Fields{"port": cfg.Port, "store": cfg.StoreDriver}).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("listen: %s\n", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Fatalf("server forced to shutdown: %v", err)
	}
	logger.Info("server exited properly")
}
