package main

import (
	"context"
	"errors"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/izeeshan007/eternal-essence-backend/internal/config"
	"github.com/izeeshan007/eternal-essence-backend/internal/controllers/http"
	"github.com/izeeshan007/eternal-essence-backend/internal/infra"
	"github.com/izeeshan007/eternal-essence-backend/internal/infra/auth"
	"github.com/izeeshan007/eternal-essence-backend/internal/infra/kafka"
	mmysql "github.com/izeeshan007/eternal-essence-backend/internal/infra/mysql"
	"github.com/izeeshan007/eternal-essence-backend/internal/infra/rabbitmq"
	"github.com/izeeshan007/eternal-essence-backend/internal/infra/razorpay"
	inredis "github.com/izeeshan007/eternal-essence-backend/internal/infra/redis"
	"github.com/izeeshan007/eternal-essence-backend/internal/orderid"
	"github.com/izeeshan007/eternal-essence-backend/internal/repository"
	"github.com/izeeshan007/eternal-essence-backend/internal/repository/memory"
	mysqlrepo "github.com/izeeshan007/eternal-essence-backend/internal/repository/mysql"
	"github.com/izeeshan007/eternal-essence-backend/internal/services"

	"github.com/gin-gonic/gin"
	goredis "github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	setupLogging(cfg)

	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	repo, seq, seeder := openStore(cfg, &closers)

	var rdb *goredis.Client
	if cfg.OrderIDCounter == "redis" || cfg.CatalogCacheTTL > 0 {
		rdb = inredis.NewClient(cfg.Redis.Addr())
		closers = append(closers, func() { _ = rdb.Close() })
	}
	if cfg.OrderIDCounter == "redis" {
		seq = inredis.NewCounter(rdb, seeder)
	}

	var catalog infra.CatalogClientInterface = infra.NewProductClient(cfg.ProductServiceURL, cfg.CatalogTimeout)
	if cfg.CatalogCacheTTL > 0 {
		catalog = infra.NewCachedCatalog(catalog, rdb, cfg.CatalogCacheTTL)
	}

	gateway := razorpay.NewClient(razorpay.Config{
		KeyID:     cfg.Razorpay.KeyID,
		KeySecret: cfg.Razorpay.KeySecret,
		BaseURL:   cfg.Razorpay.BaseURL,
		Timeout:   cfg.Razorpay.Timeout,
	})

	publisher := openPublisher(cfg, &closers)

	coupons, err := infra.LoadCouponBook(cfg.CouponsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("coupons")
	}

	svc := services.NewOrderService(repo, orderid.NewGenerator(seq), gateway, catalog, publisher, services.Config{
		Currency:       cfg.Currency,
		GatewayTimeout: cfg.GatewayTimeout,
		Coupons:        coupons,
		Shipping:       infra.NewFlatShipping(cfg.ShippingFee, cfg.FreeShippingThreshold),
	})

	handler := http.NewHandler(svc, auth.NewJWTAuthenticator(cfg.JWTSecret, cfg.AdminEmail))

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), http.RequestID(), http.RequestLogger())

	handler.RegisterRoutes(r)

	srv := &nethttp.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("store", cfg.StoreDriver).Str("broker", cfg.NotifyBroker).Msg("starting order service")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server run")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	svc.Drain()
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	logger := zerolog.New(os.Stdout)
	if cfg.LogFormat == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Logger = logger.With().Timestamp().Str("service", "order-service").Logger()
}

func openStore(cfg *config.Config, closers *[]func()) (repository.OrderRepository, repository.SequenceRepository, inredis.Seeder) {
	if cfg.StoreDriver == "memory" {
		log.Warn().Msg("using in-memory order store, orders are lost on restart")
		store := memory.NewStore()
		return store, store, store
	}

	db, err := mmysql.Open(cfg.MySQL)
	if err != nil {
		log.Fatal().Err(err).Msg("db: connect")
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("db: pool")
	}
	sqlDB.SetMaxOpenConns(1000)
	sqlDB.SetMaxIdleConns(200)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	sqlDB.SetConnMaxIdleTime(1 * time.Minute)
	*closers = append(*closers, func() { _ = sqlDB.Close() })

	seq := mysqlrepo.NewSequenceRepository(db)
	return mysqlrepo.NewOrderRepository(db), seq, seq
}

func openPublisher(cfg *config.Config, closers *[]func()) infra.EventPublisher {
	switch cfg.NotifyBroker {
	case "rabbitmq":
		p, err := rabbitmq.NewPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to init publisher")
		}
		*closers = append(*closers, p.Close)
		return p
	case "kafka":
		p := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		*closers = append(*closers, func() {
			if err := p.Close(); err != nil {
				log.Warn().Err(err).Msg("kafka writer close")
			}
		})
		return p
	default:
		return infra.NopPublisher{}
	}
}
