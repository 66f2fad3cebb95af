package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	mongoopts "go.mongodb.org/mongo-driver/mongo/options"

	"github.com/JosueSaenz2006/realtime-chat-engine/internal/api"
	"github.com/JosueSaenz2006/realtime-chat-engine/internal/blob"
	"github.com/JosueSaenz2006/realtime-chat-engine/internal/config"
	"github.com/JosueSaenz2006/realtime-chat-engine/internal/events"
	"github.com/JosueSaenz2006/realtime-chat-engine/internal/identity"
	"github.com/JosueSaenz2006/realtime-chat-engine/internal/logger"
	"github.com/JosueSaenz2006/realtime-chat-engine/internal/messagelog"
	"github.com/JosueSaenz2006/realtime-chat-engine/internal/registry"
	"github.com/JosueSaenz2006/realtime-chat-engine/internal/search"
	"github.com/JosueSaenz2006/realtime-chat-engine/internal/store"
	"github.com/JosueSaenz2006/realtime-chat-engine/internal/unread"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	zlog, err := logger.New(logger.Config{Development: cfg.App.Env != "production"})
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	var st store.Adapter
	switch cfg.Store.Backend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		st = store.NewRedis(rdb, cfg.Store.Prefix)
	case "mongo":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		mc, err := mongo.Connect(ctx, mongoopts.Client().ApplyURI(cfg.Mongo.URI))
		cancel()
		if err != nil {
			zlog.Fatalf("mongo init: %v", err)
		}
		defer func() { _ = mc.Disconnect(context.Background()) }()
		st = store.NewMongo(mc.Database(cfg.Mongo.DB))
	default:
		st = store.NewMemory()
	}

	ids := identity.NewDirectory(st)
	reg := registry.New(st, ids, zlog)
	tracker := unread.NewTracker(st, zlog)
	mlog := messagelog.New(st, reg, ids, tracker, zlog)
	idx := search.New(reg)

	var pub *events.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		pub = events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, zlog)
		defer pub.Close()
	}

	var blobs blob.Store
	if cfg.S3.Bucket != "" {
		s3s, err := blob.NewS3Store(context.Background(), cfg.S3.Region, cfg.S3.Bucket, cfg.S3.PublicRead)
		if err != nil {
			zlog.Fatalf("s3 init: %v", err)
		}
		blobs = s3s
	}

	jv, err := identity.NewJWTVerifier(cfg.JWT.HSSecret)
	if err != nil {
		zlog.Fatalf("jwt init: %v", err)
	}

	h := api.NewHandlers(reg, mlog, idx, blobs, pub, zlog)
	app := api.NewServer(h, jv)

	go func() {
		if err := app.Listen(":" + cfg.App.PortString()); err != nil {
			zlog.Fatalf("server listen: %v", err)
		}
	}()
	zlog.Infof("chatsync started on :%s (store=%s)", cfg.App.PortString(), cfg.Store.Backend)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = app.ShutdownWithContext(ctx)
	zlog.Info("chatsync stopped")
}
