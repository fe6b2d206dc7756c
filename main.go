package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/gin-contrib/expvar"
	"github.com/gin-gonic/gin"
	"github.com/johbar/ocr-service/internal/cache"
	natsconn "github.com/johbar/ocr-service/internal/cache/nats"
	"github.com/johbar/ocr-service/internal/config"
	"github.com/johbar/ocr-service/internal/recognizer"
	"github.com/johbar/ocr-service/pkg/tesseract"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"
	sloggin "github.com/samber/slog-gin"
)

const version = "1.0.0"

var logger *slog.Logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{}))

func main() {
	conf, err := config.NewOcrConfigFromEnv()
	if err != nil {
		logger.Error("Invalid configuration", "err", err)
		os.Exit(1)
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: conf.LogLevel, AddSource: conf.Debug}))
	tesseract.SetLogger(logger)

	// one shot mode: don't start a server, just process a single file provided on the command line
	if len(os.Args) > 1 {
		os.Exit(PrintMetadataAndTextToStdout(conf, os.Args[1]))
	}

	if os.Getenv("GOMEMLIMIT") != "" {
		logger.Info("GOMEMLIMIT", "Bytes", debug.SetMemoryLimit(-1), "MBytes", debug.SetMemoryLimit(-1)/1024/1024)
	}
	buildinfo, _ := debug.ReadBuildInfo()
	logger.Debug("Info", "buildinfo", buildinfo)

	nc := connectNats(conf)
	resultCache := setupCache(conf, nc)

	ocr, err := recognizer.New(conf, resultCache, logger)
	if err != nil {
		logger.Error("Fatal: Tesseract could not be initialized", "err", err)
		os.Exit(1)
	}
	var svc micro.Service
	if nc != nil {
		if svc, err = ocr.RegisterNatsService(nc, version); err != nil {
			logger.Error("Registering NATS micro service failed", "err", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if conf.NoHttp {
		if nc == nil {
			logger.Error("Fatal: NATS not connected and HTTP disabled.")
			os.Exit(1)
		}
		logger.Info("Service started with no HTTP endpoints. Waiting for interrupt.")
		<-ctx.Done()
		shutdown(ocr, nc, svc, nil)
		return
	}

	router := gin.New()
	router.Use(sloggin.New(logger), gin.Recovery())
	ocr.RegisterRoutes(router)
	router.GET("/debug/vars", expvar.Handler())
	srv := &http.Server{Addr: conf.SrvAddr, Handler: router}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdown(ocr, nc, svc, srv)
	}()
	logger.Info("Service started", "address", srv.Addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		// Error starting or closing listener:
		logger.Error("Webserver failed", "err", err)
		os.Exit(1)
	}
	<-stopped
	logger.Info("HTTP Server stopped.")
}

func connectNats(conf *config.OcrConfig) *nats.Conn {
	var (
		nc  *nats.Conn
		err error
	)
	switch {
	case conf.EmbedNats:
		nc, err = natsconn.ConnectToEmbeddedNatsServer(*conf)
	case conf.NatsUrl != "":
		nc, err = natsconn.SetupNatsConnection(*conf, logger)
	default:
		logger.Info("NATS disabled, results are not cached.")
		return nil
	}
	if err != nil {
		logger.Error("Connecting to NATS failed", "err", err, "embedded", conf.EmbedNats)
		if conf.FailWithoutJetstream {
			os.Exit(1)
		}
		return nil
	}
	logger.Info("Connected to NATS", "url", nc.ConnectedUrlRedacted(), "embedded", conf.EmbedNats)
	return nc
}

func setupCache(conf *config.OcrConfig, nc *nats.Conn) cache.Cache {
	if nc == nil {
		return cache.NopCache{}
	}
	c, err := cache.New(*conf, logger, nc)
	if err != nil {
		logger.Error("Cache could not be initialized", "err", err)
		if conf.FailWithoutJetstream {
			os.Exit(1)
		}
		return cache.NopCache{}
	}
	return c
}

// shutdown stops accepting requests on both transports before the recognizer is closed.
// The NATS connection is drained last, the cache needs it for pending writes.
func shutdown(ocr *recognizer.Recognizer, nc *nats.Conn, svc micro.Service, srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("HTTP server shutdown failed", "err", err)
		}
	}
	if svc != nil {
		if err := svc.Stop(); err != nil {
			logger.Error("Stopping NATS micro service failed", "err", err)
		}
	}
	ocr.Close(ctx)
	if nc != nil {
		if err := nc.Drain(); err != nil {
			logger.Error("Draining NATS connection failed", "err", err)
		}
	}
}
