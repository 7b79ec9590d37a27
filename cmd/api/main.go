package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/AmyLu0828/the-resume-hub/internal/api"
	"github.com/AmyLu0828/the-resume-hub/internal/compiler"
	"github.com/AmyLu0828/the-resume-hub/internal/config"
	"github.com/AmyLu0828/the-resume-hub/internal/database"
	"github.com/AmyLu0828/the-resume-hub/internal/generator"
	"github.com/AmyLu0828/the-resume-hub/internal/llm"
	"github.com/AmyLu0828/the-resume-hub/internal/polish"
	"github.com/AmyLu0828/the-resume-hub/internal/session"
	"github.com/AmyLu0828/the-resume-hub/internal/storage"
	"github.com/AmyLu0828/the-resume-hub/internal/template"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}
	log.Println("database connection ready")

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}
	log.Printf("storage client ready, bucket=%s", cfg.MinIO.Bucket)

	redisAddr := cfg.Redis.Addr()
	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Error("close asynq client failed", slog.Any("error", err))
		}
	}()

	llmClient := llm.NewClient(cfg.LLM)
	polisher := polish.NewPolisher(llmClient)
	renderer := generator.NewLLMRenderer(llmClient)
	comp := compiler.New(cfg.LaTeX)

	templates := template.NewStore(cfg.Template.Dir, cfg.Template.Default)
	sessions := session.NewManager(func() *generator.Generator {
		return generator.New(templates, renderer, logger)
	}, logger, uuid.NewString)

	router := api.NewRouter(cfg, logger)
	api.RegisterRoutes(router, db, asynqClient, redisClient, logger, storageClient, sessions, polisher, comp, templates, cfg.API.ClamdAddr)

	address := fmt.Sprintf(":%d", cfg.API.Port)
	logger.Info("api listening", slog.String("address", address))
	if err := router.Run(address); err != nil {
		log.Fatalf("failed to start api server: %v", err)
	}
}
