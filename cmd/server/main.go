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

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/fleetkeeper/fleetkeeper/internal/blob"
	"github.com/fleetkeeper/fleetkeeper/internal/config"
	"github.com/fleetkeeper/fleetkeeper/internal/es"
	"github.com/fleetkeeper/fleetkeeper/internal/httpserver"
	"github.com/fleetkeeper/fleetkeeper/internal/logging"
	"github.com/fleetkeeper/fleetkeeper/internal/middleware/csrf"
	loggingmw "github.com/fleetkeeper/fleetkeeper/internal/middleware/logging"
	"github.com/fleetkeeper/fleetkeeper/internal/middleware/session"
	"github.com/fleetkeeper/fleetkeeper/internal/mykafka"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)

	db, err := config.InitDB()
	if err != nil {
		log.Fatalf("db init: %v", err)
	}

	if configuration.JWT_SECRET == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	store, err := blob.NewDiskStore(configuration.ATTACHMENT_DIR)
	if err != nil {
		log.Fatalf("attachment dir: %v", err)
	}

	var prod *mykafka.Producer
	if configuration.KAFKA_ADDRESS != "" {
		prod = mykafka.NewProducer([]string{configuration.KAFKA_ADDRESS})
	}

	var esClient *elasticsearch.Client
	if configuration.ES_URL != "" {
		esClient, err = es.NewClient(configuration)
		if err != nil {
			log.Fatalf("elasticsearch: %v", err)
		}
	}

	sessions := &session.Service{DB: db, Secret: []byte(configuration.JWT_SECRET)}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())
	e.Use(loggingmw.RequestLogger(logger))

	csrfCfg := csrf.DefaultConfig()
	csrfCfg.SkipPrefixes = []string{"/api/v1/login", "/api/v1/register", "/checkin/"}
	e.Use(csrf.Middleware(csrfCfg))

	httpserver.Register(e, httpserver.Deps{
		DB:       db,
		Sessions: sessions,
		Blob:     store,
		Producer: prod,
		ES:       esClient,
	})

	srv := &http.Server{
		Addr:         ":" + configuration.SERVER_PORT,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if prod != nil {
		if err := prod.Close(); err != nil {
			log.Printf("kafka close error: %v", err)
		}
	}

	log.Println("shutdown complete")
}
