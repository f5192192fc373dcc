package main

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/corehttp/internal/config"
	"github.com/vango-dev/corehttp/internal/errors"
	"github.com/vango-dev/corehttp/pkg/middleware"
	"github.com/vango-dev/corehttp/pkg/router"
	"github.com/vango-dev/corehttp/pkg/server"
	"github.com/vango-dev/corehttp/pkg/static"
	"github.com/vango-dev/corehttp/pkg/upload"
	"github.com/vango-dev/corehttp/pkg/websocket"
)

const shutdownTimeout = 5 * time.Second

// app wires the protocol server, its routes and the admin server from a
// Config.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	srv    *server.Server
	router *router.Router
	store  upload.Store
	reg    *prometheus.Registry
	tracer *sdktrace.TracerProvider

	admin   *http.Server
	adminLn net.Listener
}

func newApp(cfg *config.Config, logger *slog.Logger, traceOut io.Writer) (*app, error) {
	a := &app{
		cfg:    cfg,
		logger: logger,
		reg:    prometheus.NewRegistry(),
	}

	if cfg.Tracing.Enabled {
		tp, err := newTracerProvider(cfg.Tracing, traceOut)
		if err != nil {
			return nil, err
		}
		otel.SetTracerProvider(tp)
		a.tracer = tp
	}

	store, err := newUploadStore(cfg.Uploads)
	if err != nil {
		return nil, err
	}
	a.store = store

	provider, err := newProvider(cfg.TLS)
	if err != nil {
		return nil, err
	}

	a.router, err = a.buildRouter()
	if err != nil {
		return nil, err
	}

	var executor server.Executor
	if cfg.Server.Workers > 0 {
		executor = server.NewPoolExecutor(cfg.Server.Workers)
	}

	a.srv = server.New(&server.ServerConfig{
		Address:       cfg.Address(),
		SocketTimeout: cfg.Server.SocketTimeout.Std(),
		AcceptRate:    cfg.Server.AcceptRate,
		AcceptBurst:   cfg.Server.AcceptBurst,
		MaxBodySize:   cfg.Server.MaxBodySize,
		MaxLineSize:   cfg.Server.MaxLineSize,
		UploadStore:   store,
		Provider:      provider,
		Executor:      executor,
		Logger:        logger.With("component", "server"),
	})
	a.srv.SetHandler(a.router)

	a.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		server.NewCollector(a.srv),
	)

	if cfg.Admin.Enabled {
		a.admin = &http.Server{
			Handler:           a.adminHandler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}
	return a, nil
}

// buildRouter mounts the static handler before the WebSocket paths so that
// a static prefix of "/" does not displace them.
func (a *app) buildRouter() (*router.Router, error) {
	r := router.New()

	otelOpts := []middleware.OTelOption{middleware.WithTracerName("corehttp")}
	if a.tracer != nil {
		otelOpts = append(otelOpts, middleware.WithTracerProvider(a.tracer))
	}
	r.Use(
		middleware.Logger(a.logger),
		middleware.CleanPaths(),
		middleware.OpenTelemetry(otelOpts...),
		middleware.Prometheus(middleware.WithRegistry(a.reg)),
	)

	sc := a.cfg.Static
	if sc.Enabled {
		st, err := os.Stat(sc.Dir)
		if err != nil || !st.IsDir() {
			e := errors.New("S004").WithDetail("The folder " + sc.Dir + " does not exist or is not a directory.")
			if err != nil {
				e = e.Wrap(err)
			}
			return nil, e
		}
		r.Mount(sc.Prefix, static.Dir(sc.Dir,
			static.WithIndex(sc.Index),
			static.WithGzipMinLength(sc.GzipMinLength),
			static.WithCacheControl(cacheControl(sc.CacheControl)),
			static.WithLogger(a.logger.With("component", "static")),
		))
	}

	wc := a.cfg.WebSocket
	if wc.Enabled && len(wc.Paths) > 0 {
		opts := []websocket.Option{
			websocket.WithPaths(wc.Paths...),
			websocket.WithMaxMessageSize(wc.MaxMessageSize),
			websocket.WithLogger(a.logger.With("component", "websocket")),
		}
		if wc.MaskOutbound {
			opts = append(opts, websocket.WithMaskedOutbound())
		}
		ws := websocket.NewHandler(&echoListener{logger: a.logger.With("component", "echo")}, opts...)
		for _, p := range wc.Paths {
			r.Handle(p, ws)
		}
	}
	return r, nil
}

func (a *app) adminHandler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(a.reg, promhttp.HandlerOpts{Registry: a.reg}))
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		addr := a.srv.Addr()
		if addr == nil {
			render.Status(req, http.StatusServiceUnavailable)
			render.JSON(w, req, map[string]string{"status": "stopped"})
			return
		}
		render.JSON(w, req, map[string]string{
			"status":  "ok",
			"address": addr.String(),
			"version": version,
		})
	})
	r.Get("/connections", func(w http.ResponseWriter, req *http.Request) {
		render.JSON(w, req, a.srv.Connections())
	})
	r.Get("/stats", func(w http.ResponseWriter, req *http.Request) {
		render.JSON(w, req, a.srv.Metrics())
	})
	return r
}

// start binds the protocol server and the admin listener.
func (a *app) start() error {
	if err := a.srv.Connect(); err != nil {
		return errors.New("S001").
			WithDetail("Could not listen on " + a.cfg.Address() + ".").
			Wrap(err)
	}

	if a.admin != nil {
		ln, err := net.Listen("tcp", a.cfg.Admin.Address)
		if err != nil {
			a.srv.Disconnect()
			return errors.New("S005").Wrap(err)
		}
		a.adminLn = ln
	}
	return nil
}

// wait serves until ctx is done or a component fails, then shuts
// everything down.
func (a *app) wait(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		select {
		case <-gctx.Done():
			a.srv.Disconnect()
			return nil
		case <-a.srv.Done():
			if err := a.srv.Err(); err != nil {
				return err
			}
			return server.ErrServerClosed
		}
	})

	if a.admin != nil {
		g.Go(func() error {
			err := a.admin.Serve(a.adminLn)
			if err != nil && !stderrors.Is(err, http.ErrServerClosed) {
				return errors.New("S005").Wrap(err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return a.admin.Shutdown(sctx)
		})
	}

	if c, ok := a.store.(cleaner); ok && a.cfg.Uploads.CleanupInterval > 0 {
		g.Go(func() error {
			a.cleanupLoop(gctx, c)
			return nil
		})
	}

	err := g.Wait()

	if a.tracer != nil {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if terr := a.tracer.Shutdown(sctx); terr != nil {
			a.logger.Warn("tracer shutdown failed", "error", terr)
		}
	}
	return err
}

// run starts the app and serves until ctx is done.
func (a *app) run(ctx context.Context) error {
	if err := a.start(); err != nil {
		return err
	}
	return a.wait(ctx)
}

type cleaner interface {
	Cleanup(maxAge time.Duration) error
}

func (a *app) cleanupLoop(ctx context.Context, c cleaner) {
	ticker := time.NewTicker(a.cfg.Uploads.CleanupInterval.Std())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Cleanup(a.cfg.Uploads.MaxAge.Std()); err != nil {
				a.logger.Warn("upload cleanup failed", "error", err)
			}
		}
	}
}

func newTracerProvider(cfg config.TracingConfig, w io.Writer) (*sdktrace.TracerProvider, error) {
	opts := []stdouttrace.Option{stdouttrace.WithWriter(w)}
	if cfg.PrettyPrint {
		opts = append(opts, stdouttrace.WithPrettyPrint())
	}
	exp, err := stdouttrace.New(opts...)
	if err != nil {
		return nil, errors.Newf(errors.CategoryStartup, "cannot create trace exporter").Wrap(err)
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", version),
	)
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	), nil
}

func newUploadStore(cfg config.UploadsConfig) (upload.Store, error) {
	if cfg.Backend == "s3" {
		client := upload.NewS3Client(upload.S3Options{
			Region:       cfg.S3Region,
			Endpoint:     cfg.S3Endpoint,
			UsePathStyle: cfg.S3UsePathStyle,
		})
		return upload.NewS3Store(client, cfg.S3Bucket, cfg.S3Prefix, cfg.MaxSize), nil
	}

	store, err := upload.NewDiskStore(cfg.Dir, cfg.MaxSize)
	if err != nil {
		return nil, errors.New("S003").Wrap(err)
	}
	return store, nil
}

func newProvider(cfg config.TLSConfig) (server.ListenerProvider, error) {
	if !cfg.Enabled {
		return server.TCPProvider{}, nil
	}

	if cfg.Keystore != "" {
		data, err := os.ReadFile(cfg.Keystore)
		if err != nil {
			return nil, errors.New("S002").Wrap(err)
		}
		p, err := server.NewPKCS12Provider(data, cfg.Password)
		if err != nil {
			return nil, errors.New("S002").Wrap(err)
		}
		return p, nil
	}

	certPEM, err := os.ReadFile(cfg.CertFile)
	if err != nil {
		return nil, errors.New("S002").Wrap(err)
	}
	keyPEM, err := os.ReadFile(cfg.KeyFile)
	if err != nil {
		return nil, errors.New("S002").Wrap(err)
	}
	p, err := server.NewPEMProvider(certPEM, keyPEM)
	if err != nil {
		return nil, errors.New("S002").Wrap(err)
	}
	return p, nil
}

func cacheControl(s string) static.CacheControl {
	switch s {
	case "no-store":
		return static.CacheControlNoStore
	case "production":
		return static.CacheControlProduction
	default:
		return static.CacheControlNone
	}
}

// echoListener sends every message back to its sender.
type echoListener struct {
	websocket.NopListener
	logger *slog.Logger
}

func (l *echoListener) OnOpen(c *websocket.Conn) {
	l.logger.Debug("websocket opened", "id", c.ID(), "remote", c.RemoteAddr())
}

func (l *echoListener) OnText(c *websocket.Conn, text string) {
	if err := c.SendText(text); err != nil {
		l.logger.Warn("echo failed", "id", c.ID(), "error", err)
	}
}

func (l *echoListener) OnBinary(c *websocket.Conn, data []byte) {
	if err := c.SendBinary(data); err != nil {
		l.logger.Warn("echo failed", "id", c.ID(), "error", err)
	}
}

func (l *echoListener) OnClose(c *websocket.Conn, err error) {
	if err != nil {
		l.logger.Warn("websocket closed", "id", c.ID(), "error", err)
		return
	}
	l.logger.Debug("websocket closed", "id", c.ID())
}
