package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yourorg/pairchat/internal/auth"
	"github.com/yourorg/pairchat/internal/config"
	"github.com/yourorg/pairchat/internal/database"
	"github.com/yourorg/pairchat/internal/email"
	"github.com/yourorg/pairchat/internal/events"
	"github.com/yourorg/pairchat/internal/handlers"
	"github.com/yourorg/pairchat/internal/logger"
	"github.com/yourorg/pairchat/internal/metrics"
	"github.com/yourorg/pairchat/internal/middleware"
	"github.com/yourorg/pairchat/internal/realtime"
	"github.com/yourorg/pairchat/internal/repository"
	"github.com/yourorg/pairchat/internal/server"
	"github.com/yourorg/pairchat/internal/services"
	"github.com/yourorg/pairchat/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	logr, err := logger.New(logger.Options{Development: cfg.App.Env != "production"})
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = logr.Sync() }()

	metrics.Init()

	db, mongoClient, err := database.ConnectMongo(cfg.Mongo.URI, cfg.Mongo.Database, logr)
	if err != nil {
		logr.Fatalf("mongo connect: %v", err)
	}
	rdb, err := database.ConnectRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logr)
	if err != nil {
		logr.Fatalf("redis connect: %v", err)
	}

	userRepo := repository.NewMongoUserRepo(db, "users")
	chatRepo := repository.NewMongoChatRepo(db)

	tokens := auth.NewManager(cfg.JWT.Secret, cfg.JWTTTL)
	mail := email.NewClient(cfg.Email.APIKey, cfg.Email.FromEmail, cfg.Email.FromName)
	if !mail.IsConfigured() {
		logr.Warn("email client not configured, password reset mail disabled")
	}

	avatars, err := storage.NewS3Store(context.Background(), cfg.Storage.Region, cfg.Storage.Bucket, cfg.Storage.PublicRead)
	if err != nil {
		logr.Fatalf("s3 store init: %v", err)
	}

	gateway := realtime.NewGateway(logr, realtime.Options{
		PingInterval:   cfg.PingInterval,
		WriteDeadline:  cfg.WriteDeadline,
		MaxMessageSize: cfg.WS.MaxMessageSizeBytes,
		SendBufferSize: cfg.WS.SendBufferSize,
	})

	var producer *events.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer = events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicMessageSent)
		defer func() { _ = producer.Close() }()
	} else {
		logr.Warn("kafka brokers not configured, message.sent events disabled")
	}

	authSvc := services.NewAuthService(userRepo, rdb, mail, avatars, tokens, logr, services.AuthConfig{
		PasswordHashCost: cfg.Security.PasswordHashCost,
		ResetTokenTTL:    cfg.ResetTokenTTL,
		PublicBaseURL:    cfg.App.PublicBaseURL,
		RedisPrefix:      cfg.Redis.Prefix,
	})

	var pub services.Publisher
	if producer != nil {
		pub = producer
	}
	chatSvc := services.NewChatService(chatRepo, gateway, pub, logr)

	app := server.New(cfg, server.Deps{
		Users:       handlers.NewUserHandler(authSvc),
		Messages:    handlers.NewMessageHandler(chatSvc),
		Gateway:     gateway,
		Tokens:      tokens,
		AuthLimiter: middleware.NewRateLimiter(rdb, cfg.Redis.Prefix+":rl:auth", cfg.Security.LoginRateLimit, cfg.LoginRateWindow),
	}, logr)

	errs := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.App.Port)
		logr.Infof("pairchat listening on %s", addr)
		errs <- app.Listen(addr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errs:
		logr.Errorf("server error: %v", err)
	case s := <-sig:
		logr.Infof("signal received: %v", s)
	}

	if err := app.Shutdown(); err != nil {
		logr.Errorf("fiber shutdown: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := mongoClient.Disconnect(ctx); err != nil {
		logr.Errorf("mongo disconnect: %v", err)
	}
	_ = rdb.Close()
	logr.Info("shutdown complete")
}
