package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/longhang2004/content-service/internal/cache"
	"github.com/longhang2004/content-service/internal/compress"
	"github.com/longhang2004/content-service/internal/config"
	"github.com/longhang2004/content-service/internal/job"
	"github.com/longhang2004/content-service/internal/service"
	"github.com/longhang2004/content-service/internal/store"
)

// Server represents the server
type Server struct {
	cnf *config.Config
}

// NewServer creates a new server
func NewServer(cnf *config.Config) *Server {
	return &Server{cnf: cnf}
}

// Start starts the server
func (s *Server) Start() {
	if err := Start(s.cnf); err != nil {
		logrus.Fatalf("error starting server: %v", err)
	}
}

// Start wires the store, cache, services and routes, then serves HTTP until
// interrupted.
func Start(cnf *config.Config) error {
	db := config.GetDb(cnf)

	contentStore := store.NewGormStore(db)
	if err := contentStore.Migrate(); err != nil {
		return err
	}

	codec, err := compress.New(cnf.Compression)
	if err != nil {
		return err
	}

	var redis *cache.Redis
	if cnf.RedisAddr != "" {
		redis, err = cache.NewRedis(cnf.RedisAddr, cnf.RedisPassword)
		if err != nil {
			logrus.Warnf("redis unavailable, running without content cache: %v", err)
			redis = nil
		}
	}

	versioning := service.NewVersioningService(codec, contentStore)
	contents := service.NewContentService(contentStore, versioning, redis)

	auth := NewAuthenticator(cnf.JWTSecret)
	if cnf.JWTSecret == "" {
		logrus.Warn("JWT_SECRET is empty, running in insecure mode")
	}

	handler := NewHandler(contents, versioning)
	router := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE"},
		AllowedHeaders: []string{"*"},
	}).Handler(handler.Routes(auth))

	httpServer := &http.Server{
		Addr:    ":" + cnf.HTTPPort,
		Handler: router,
	}

	var retentionCron *cron.Cron
	if cnf.RetentionEnabled {
		retention := job.NewVersionRetention(contentStore, cnf.RetentionWindow)
		retentionCron = cron.New()
		if err := retentionCron.AddFunc(cnf.RetentionSchedule, retention.Sweep); err != nil {
			return err
		}
		retentionCron.Start()
		logrus.Infof("version retention scheduled: %s", cnf.RetentionSchedule)
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("http server listening on :%s", cnf.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigs:
		logrus.Infof("received %s, shutting down", sig)
	}

	if retentionCron != nil {
		retentionCron.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(ctx)
}
