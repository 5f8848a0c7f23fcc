package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	domrepo "SPXEngine/internal/domain/repository"
	"SPXEngine/internal/services/model"
	"SPXEngine/internal/usecase"
	pkgch "SPXEngine/pkg/clickhouse"
	"SPXEngine/pkg/config"
	xhttp "SPXEngine/pkg/http"
	pkgkafka "SPXEngine/pkg/kafka"
	applogger "SPXEngine/pkg/logger"
	"SPXEngine/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	log         *applogger.Logger
	loader      *model.Loader
	collector   *usecase.QuoteCollector
	consumer    *pkgkafka.Consumer
	flowHandler *usecase.KafkaFlowHandler
	chClient    *pkgch.Client
	ingestQueue *queue.RedisQueue
	auditPub    domrepo.AuditPublisher
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	loader *model.Loader,
	collector *usecase.QuoteCollector,
	consumer *pkgkafka.Consumer,
	flowHandler *usecase.KafkaFlowHandler,
	chClient *pkgch.Client,
	ingestQueue *queue.RedisQueue,
	auditPub domrepo.AuditPublisher,
	httpHandler xhttp.Handler,
) *App {
	return &App{
		cfg:         cfg,
		log:         log,
		loader:      loader,
		collector:   collector,
		consumer:    consumer,
		flowHandler: flowHandler,
		chClient:    chClient,
		ingestQueue: ingestQueue,
		auditPub:    auditPub,
		httpHandler: httpHandler,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := a.log
	if l == nil {
		l = applogger.Nop()
	}

	// Confidence model: warm start from cache, then background refresh.
	if a.loader != nil {
		a.loader.WarmStart(ctx)
		go a.loader.StartAutoRefresh(ctx)
	}

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithServerLogger(l),
	)

	if a.collector != nil {
		go func() {
			if err := a.collector.Start(ctx); err != nil {
				l.Error("quote collector error", applogger.Error(err))
			}
		}()
		l.Info("quote collector started", applogger.Strings("symbols", a.cfg.MarketFeed.Symbols))
	}

	if a.consumer != nil && a.flowHandler != nil {
		a.consumer.RegisterHandler(a.flowHandler)
		go func() {
			if err := a.consumer.Start(); err != nil {
				l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		l.Info("kafka consumer started", applogger.String("topic", a.flowHandler.Topic()))
	}

	if a.ingestQueue != nil {
		if err := a.ingestQueue.Start(); err != nil {
			l.Error("ingest queue start error", applogger.Error(err))
		}
	}

	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	l := a.log
	if l == nil {
		l = applogger.Nop()
	}
	l.Info("shutting down...")

	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			l.Warn("quote collector stop error", applogger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		l.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.ingestQueue != nil {
		if err := a.ingestQueue.Stop(shutdownCtx); err != nil {
			l.Warn("ingest queue stop error", applogger.Error(err))
		}
	}

	// flush any aggregated error logs before the producer goes away
	if a.log != nil {
		a.log.RemoveCollector()
	}

	if a.auditPub != nil {
		if err := a.auditPub.Close(); err != nil {
			l.Warn("audit publisher close error", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	l.Info("shutdown complete")
	return nil
}
