package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/adityaraj-09/faff-assign/internal/attachments"
	"github.com/adityaraj-09/faff-assign/internal/auth"
	"github.com/adityaraj-09/faff-assign/internal/chat"
	"github.com/adityaraj-09/faff-assign/internal/config"
	"github.com/adityaraj-09/faff-assign/internal/database"
	"github.com/adityaraj-09/faff-assign/internal/http/handlers"
	"github.com/adityaraj-09/faff-assign/internal/logger"
	"github.com/adityaraj-09/faff-assign/internal/models"
	"github.com/adityaraj-09/faff-assign/internal/store"
	"github.com/adityaraj-09/faff-assign/internal/textgen"
	"github.com/adityaraj-09/faff-assign/internal/ws"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const shutdownTimeout = 30 * time.Second

func loadConfig() (config.Config, *slog.Logger, error) {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		return cfg, log, err
	}
	return cfg, log, nil
}

func openDB(cfg config.Config, log *slog.Logger) (*gorm.DB, error) {
	db, err := database.Open(cfg.DBDriver, cfg.DBDSN, log)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		_ = database.Close(db)
		return nil, err
	}
	return db, nil
}

func runMigrate(ctx context.Context, promoteAdmin []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg, log)
	if err != nil {
		return err
	}
	log.Info("migrations applied")

	st := store.New(db)
	for _, email := range promoteAdmin {
		email = strings.ToLower(strings.TrimSpace(email))
		if err = st.UpdateUserRole(ctx, email, models.RoleAdmin); err != nil {
			err = fmt.Errorf("promote %s: %w", email, err)
			break
		}
		log.Info("user promoted to admin", slog.String("email", email))
	}
	return errors.Join(err, database.Close(db))
}

func runServe() error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openDB(cfg, log)
	if err != nil {
		return fmt.Errorf("failed connect db: %w", err)
	}
	st := store.New(db)

	disk, err := attachments.NewDiskStorage(cfg.UploadDir)
	if err != nil {
		return err
	}
	files := attachments.NewProcessor(disk, attachments.Limits{
		MaxFiles: cfg.UploadMaxFiles,
		MaxBytes: cfg.UploadMaxBytes,
	}, cfg.UploadBaseURL, log)

	hub := ws.NewHub(log)
	var out ws.Broadcaster = hub

	var rdb *redis.Client
	var fanout *ws.RedisFanout
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(ctx).Err()
		if err == nil {
			fanout = ws.NewRedisFanout(rdb, cfg.RedisChannel, hub, log)
			err = fanout.Start(ctx)
		}
		cancel()
		if err != nil {
			return fmt.Errorf("redis fanout: %w", err)
		}
		out = fanout
		log.Info("redis fanout enabled", slog.String("channel", cfg.RedisChannel))
	}

	var gen textgen.Generator = textgen.Disabled{}
	if cfg.OpenAIKey != "" {
		gen = textgen.NewOpenAIClient(cfg.OpenAIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL, log)
	} else {
		log.Warn("OPENAI_API_KEY not set; summaries fall back to entity extraction")
	}

	msgs := chat.NewService(st, files, out, log)
	intake := chat.NewIntake(msgs)

	gin.SetMode(gin.ReleaseMode)
	router := handlers.NewRouter(handlers.Deps{
		Store:                st,
		Verifier:             auth.NewVerifier(cfg.JWTSecret, cfg.JWTTTL),
		Files:                files,
		UploadDir:            cfg.UploadDir,
		UploadURL:            cfg.UploadBaseURL,
		Messages:             msgs,
		Intake:               intake,
		Tasks:                chat.NewTaskService(st, files, out, log),
		Summaries:            chat.NewSummaryService(st, gen, log),
		Reviews:              chat.NewReviewService(st, gen, log),
		Hub:                  hub,
		Out:                  out,
		Session:              ws.SessionConfig{EventRate: cfg.WSEventRate, EventBurst: cfg.WSEventBurst},
		WSInsecureSkipVerify: cfg.WSInsecureSkipVerify,
		WSOriginPatterns:     cfg.WSOriginPatterns,
		Logger:               log,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("listening", slog.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server run failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"taskchat": func(ctx context.Context) error {
				log.Info("graceful shutdown initiated")
				// urutan penting: stop terima request, putus websocket, baru tutup backend
				err := httpServer.Shutdown(ctx)
				hub.Close()
				if fanout != nil {
					err = errors.Join(err, fanout.Close(ctx))
				}
				if rdb != nil {
					err = errors.Join(err, rdb.Close())
				}
				return errors.Join(err, database.Close(db))
			},
		},
	)

	exitCode := <-wait
	log.Info("exited", slog.Int("code", exitCode))
	if exitCode != 0 {
		return fmt.Errorf("shutdown finished with code %d", exitCode)
	}
	return nil
}
