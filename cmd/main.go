package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/opsworks-ru/go-es-facade/internal/config"
	es "github.com/opsworks-ru/go-es-facade/internal/elasticsearch"
	"github.com/opsworks-ru/go-es-facade/internal/kafka"
	"github.com/opsworks-ru/go-es-facade/internal/logger"
	"github.com/opsworks-ru/go-es-facade/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	zl, err := logger.Init(cfg.LoggerDB)
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer zl.Sync()
	zl.Info("starting ingest service")

	cp, err := store.Open(cfg.Checkpoint)
	if err != nil {
		zl.Fatal("open checkpoint store", zap.Error(err))
	}
	defer cp.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	facade := es.New(es.Config{
		URL:      cfg.Elasticsearch.URL,
		Username: cfg.Elasticsearch.Username,
		Password: cfg.Elasticsearch.Password,
		Index:    cfg.Elasticsearch.Index,
	})
	if !facade.Ping(ctx) {
		zl.Fatal("elasticsearch cluster is unreachable", zap.String("url", cfg.Elasticsearch.URL))
	}
	if err := facade.Setup(ctx); err != nil {
		zl.Fatal("default index setup", zap.Error(err))
	}

	if off, err := cp.Offset(); err == nil && off >= 0 {
		zl.Info("resuming after checkpoint", zap.Int64("offset", off))
	}

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID, facade, cp, zl)
	defer consumer.Close()

	if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
		zl.Fatal("consumer stopped", zap.Error(err))
	}
	zl.Info("shutting down")
}
