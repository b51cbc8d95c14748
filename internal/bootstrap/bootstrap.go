package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-resty/resty/v2"
	"github.com/swaggo/swag"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	_ "image-pipeline-server/docs"
	"image-pipeline-server/internal/domain/artifact"
	"image-pipeline-server/internal/domain/eventbus"
	"image-pipeline-server/internal/domain/extract"
	domainimage "image-pipeline-server/internal/domain/image"
	"image-pipeline-server/internal/domain/manifest"
	"image-pipeline-server/internal/domain/scrape"
	platformconfig "image-pipeline-server/internal/platform/config"
	platformerrors "image-pipeline-server/internal/platform/errors"
	platformlogging "image-pipeline-server/internal/platform/logging"
	platformobservability "image-pipeline-server/internal/platform/observability"
	platformstorage "image-pipeline-server/internal/platform/storage"
	httptransport "image-pipeline-server/internal/transport/http"
	httphealth "image-pipeline-server/internal/transport/http/health"
	httpimageapi "image-pipeline-server/internal/transport/http/imageapi"
	"image-pipeline-server/internal/util/retry"
)

const scalarHTML = `<!DOCTYPE html>
<html lang="en">
	<head>
		<meta charset="utf-8" />
		<title>Image Pipeline API Reference</title>
		<meta name="viewport" content="width=device-width, initial-scale=1" />
	</head>
	<body>
		<script
			id="api-reference"
			data-url="/openapi.json"
			data-layout="modern"
			src="https://cdn.jsdelivr.net/npm/@scalar/api-reference"
		></script>
	</body>
</html>`

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

type appState struct {
	loader                *platformconfig.Loader
	config                *platformconfig.Config
	configPath            string
	logger                *platformlogging.Logger
	slogger               *slog.Logger
	observabilityShutdown platformobservability.ShutdownFunc
	db                    *gorm.DB
	bus                   *eventbus.Bus
	manifests             manifest.Store
	artifacts             artifact.Store
	validator             *domainimage.URLValidator
	pipeline              *domainimage.Pipeline
}

// Run 启动整个服务生命周期，负责加载配置、初始化依赖和优雅关停。
func Run(ctx context.Context) error {
	state := &appState{}
	defer state.close()

	steps := InitGraph()
	if err := executeInitSteps(ctx, steps, state); err != nil {
		return err
	}

	logger := state.logger
	if state.config == nil || logger == nil || state.pipeline == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"bootstrap state validation",
			"config/logger/pipeline not initialised",
		)
	}

	logBootstrapGraph(steps, logger)

	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	signalCtx, stop := signal.NotifyContext(rootCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(rootCtx)

	if _, err := startHTTPServer(state, group, groupCtx); err != nil {
		cancel()
		return fmt.Errorf("启动 Http 服务失败: %w", err)
	}

	return waitForShutdown(signalCtx, cancel, logger, group)
}

// close 按初始化的逆序释放资源。
func (s *appState) close() {
	if s == nil {
		return
	}
	logger := s.logger

	if s.validator != nil {
		s.validator.Close()
	}
	if s.bus != nil {
		s.bus.WaitAsync()
	}
	if s.manifests != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.manifests.Close(ctx); err != nil {
			logger.WarnTag("引导", "清单存储未正常关闭: %v", err)
		}
		cancel()
	}
	if s.db != nil {
		if err := platformstorage.Close(s.db); err != nil {
			logger.WarnTag("引导", "数据库未正常关闭: %v", err)
		}
	}
	if shutdown := s.observabilityShutdown; shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := shutdown(ctx); err != nil {
			logger.WarnTag("引导", "可观测性未正常关闭: %v", err)
		}
		cancel()
	}
	if logger != nil {
		_ = logger.Close()
	}
}

func logBootstrapGraph(steps []initStep, logger *platformlogging.Logger) {
	if logger == nil {
		return
	}
	logger.InfoTag("引导", "初始化依赖关系概览")
	for _, step := range steps {
		if len(step.DependsOn) == 0 {
			logger.InfoTag("引导", "%s (%s)", step.ID, step.Title)
			continue
		}
		logger.InfoTag("引导", "%s (%s) <- %s", step.ID, step.Title, strings.Join(step.DependsOn, ", "))
	}
	logger.InfoTag("引导", "启动服务")
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	if state == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"execute init steps",
			"nil bootstrap state",
		)
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platformerrors.New(
					platformerrors.KindBootstrap,
					step.ID,
					fmt.Sprintf("dependency %s not satisfied", dep),
				)
			}
		}
		if step.Execute == nil {
			return platformerrors.New(
				platformerrors.KindBootstrap,
				step.ID,
				"missing execute function",
			)
		}
		if err := step.Execute(ctx, state); err != nil {
			var typed *platformerrors.Error
			if errors.As(err, &typed) {
				return err
			}

			kind := step.Kind
			if kind == "" {
				kind = platformerrors.KindBootstrap
			}
			return platformerrors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init-provider",
			Title:     "Initialise logging provider",
			DependsOn: []string{"config:load"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initLoggingStep,
		},
		{
			ID:        "observability:setup-hooks",
			Title:     "Setup observability hooks",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   setupObservabilityStep,
		},
		{
			ID:        "storage:init-database",
			Title:     "Initialise database",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindStorage,
			Execute:   initDatabaseStep,
		},
		{
			ID:        "events:init-bus",
			Title:     "Initialise event bus",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initEventBusStep,
		},
		{
			ID:        "manifest:init-store",
			Title:     "Initialise manifest store",
			DependsOn: []string{"storage:init-database", "events:init-bus"},
			Kind:      platformerrors.KindStorage,
			Execute:   initManifestStep,
		},
		{
			ID:        "artifact:init-store",
			Title:     "Initialise artifact store",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindStorage,
			Execute:   initArtifactStep,
		},
		{
			ID:        "pipeline:init",
			Title:     "Initialise image pipeline",
			DependsOn: []string{"observability:setup-hooks", "events:init-bus", "artifact:init-store"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initPipelineStep,
		},
	}
}

func loadConfigStep(_ context.Context, state *appState) error {
	loader := state.loader
	if loader == nil {
		loader = platformconfig.NewLoader()
	}
	result, err := loader.Load()
	if err != nil {
		return err
	}
	state.config = result.Config
	state.configPath = result.Path
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	if state.config == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"logging:init-provider",
			"config not loaded",
		)
	}

	logger, err := platformlogging.New(platformlogging.Config{
		Level:    state.config.Log.Level,
		Dir:      state.config.Log.Dir,
		Filename: state.config.Log.File,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "logging:init-provider", "failed to initialize logging provider", err)
	}

	state.logger = logger
	state.slogger = logger.Slog()
	logger.InfoTag("引导", "日志模块就绪 [%s] %s", state.config.Log.Level, state.configPath)
	return nil
}

func setupObservabilityStep(ctx context.Context, state *appState) error {
	if state.logger == nil || state.config == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"observability:setup-hooks",
			"config/logger not initialised",
		)
	}

	cfg := platformobservability.Config{
		Enabled: strings.EqualFold(state.config.Log.Level, "debug"),
	}
	shutdown, err := platformobservability.Setup(ctx, cfg, state.slogger)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "observability:setup-hooks", "failed to setup observability hooks", err)
	}
	state.observabilityShutdown = shutdown
	return nil
}

// initDatabaseStep 仅在清单存储需要时打开 sqlite。
func initDatabaseStep(_ context.Context, state *appState) error {
	if state.config.Manifest.Driver != manifest.DriverSQLite {
		state.logger.DebugTag("引导", "清单驱动 %s 不需要数据库", state.config.Manifest.Driver)
		return nil
	}

	db, err := platformstorage.Open(state.config.Database.DSN)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "storage:init-database", "failed to initialize database", err)
	}
	state.db = db
	state.logger.InfoTag("引导", "数据库就绪 %s", state.config.Database.DSN)
	return nil
}

func initEventBusStep(_ context.Context, state *appState) error {
	state.bus = eventbus.New()
	if err := eventbus.NewLogHandler(state.logger).Attach(state.bus); err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "events:init-bus", "failed to attach event log handler", err)
	}
	return nil
}

func initManifestStep(_ context.Context, state *appState) error {
	store, err := manifest.New(state.config.Manifest, manifest.Dependencies{SQLiteDB: state.db})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "manifest:init-store", "failed to create manifest store", err)
	}
	state.manifests = store

	if err := manifest.NewRecorder(store, state.logger).Attach(state.bus); err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "manifest:init-store", "failed to attach manifest recorder", err)
	}
	state.logger.InfoTag("引导", "清单存储就绪 [%s]", driverOr(state.config.Manifest.Driver, manifest.DriverMemory))
	return nil
}

func initArtifactStep(_ context.Context, state *appState) error {
	store, err := artifact.New(state.config.Storage, artifact.Dependencies{
		Retry:  fetchPolicy(state.config.Fetch, state.logger, "STORE"),
		Logger: state.logger,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "artifact:init-store", "failed to create artifact store", err)
	}
	state.artifacts = store
	state.logger.InfoTag("引导", "产物存储就绪 [%s]", store.Name())
	return nil
}

func initPipelineStep(_ context.Context, state *appState) error {
	cfg := state.config

	var validator domainimage.Validator
	if cfg.Pipeline.ValidateBeforeFetch {
		state.validator = domainimage.NewURLValidator(domainimage.ValidatorOptions{
			Client:   newHTTPClient(cfg.Fetch),
			CacheTTL: cfg.Pipeline.ProbeCacheTTL,
			Logger:   state.logger,
		})
		validator = state.validator
	}

	pipeline, err := domainimage.NewPipeline(domainimage.Options{
		Fetcher: domainimage.NewHTTPFetcher(domainimage.FetcherOptions{
			Timeout:   cfg.Fetch.Timeout,
			MaxBytes:  cfg.Fetch.MaxBytes,
			UserAgent: cfg.Fetch.UserAgent,
			Retry:     fetchPolicy(cfg.Fetch, state.logger, "FETCH"),
			Logger:    state.logger,
		}),
		Validator:          validator,
		Store:              state.artifacts,
		Keys:               domainimage.NewKeyDeriver(cfg.Pipeline.Directory, domainimage.NamingStrategy(cfg.Naming.Strategy)),
		Variants:           domainimage.VariantsFromConfig(cfg.Pipeline.Variants),
		MaxSize:            cfg.Pipeline.MaxSize,
		MaxQuality:         cfg.Pipeline.MaxQuality,
		MaxSourcePixels:    cfg.Pipeline.MaxSourcePixels,
		StoreOriginal:      cfg.Pipeline.StoreOriginal,
		VariantConcurrency: cfg.Pipeline.VariantConcurrency,
		BatchConcurrency:   cfg.Pipeline.BatchConcurrency,
		MaxInflightImages:  int64(cfg.Pipeline.MaxInflightImages),
		Bus:                state.bus,
		Logger:             state.logger,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "pipeline:init", "failed to create image pipeline", err)
	}
	state.pipeline = pipeline

	labels := make([]string, 0, len(pipeline.Variants()))
	for _, v := range pipeline.Variants() {
		labels = append(labels, fmt.Sprintf("%s:%d", v.Label, v.Width))
	}
	state.logger.InfoTag("引导", "图片管道就绪 variants=[%s] max=%d naming=%s",
		strings.Join(labels, " "), cfg.Pipeline.MaxSize, cfg.Naming.Strategy)
	return nil
}

func fetchPolicy(cfg platformconfig.FetchConfig, logger *platformlogging.Logger, tag string) retry.Policy {
	return retry.Policy{
		MaxAttempts:     cfg.MaxAttempts,
		InitialInterval: cfg.InitialBackoff,
		MaxInterval:     cfg.MaxBackoff,
		OnRetry: func(err error, wait time.Duration) {
			logger.WarnTag(tag, "%s 后重试: %v", wait, err)
		},
	}
}

func newHTTPClient(cfg platformconfig.FetchConfig) *resty.Client {
	client := resty.New()
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}
	return client
}

func driverOr(driver, fallback string) string {
	if driver == "" {
		return fallback
	}
	return driver
}

// buildRouter 创建路由并注册所有 HTTP 服务。
func buildRouter(ctx context.Context, state *appState) (*httptransport.Router, error) {
	cfg := state.config
	logger := state.logger

	var mounts []httptransport.Mount
	if state.artifacts != nil && state.artifacts.Name() == artifact.DriverFS && cfg.Storage.FS.MountPath != "" {
		mounts = append(mounts, httptransport.Mount{Path: cfg.Storage.FS.MountPath, Root: cfg.Storage.FS.Root})
	}

	httpRouter, err := httptransport.Build(httptransport.Options{
		Config: cfg,
		Logger: logger,
		Mounts: mounts,
	})
	if err != nil {
		return nil, err
	}

	client := newHTTPClient(cfg.Fetch)
	imageService, err := httpimageapi.NewService(httpimageapi.Options{
		Pipeline:   state.pipeline,
		JSONSource: extract.NewSource(client),
		Scraper:    scrape.New(client, logger),
		Manifests:  state.manifests,
		Logger:     logger,
	})
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "imageapi:new-service", "failed to create image service", err)
	}

	healthService := httphealth.NewService(httphealth.Options{
		Pipeline:  state.pipeline,
		Manifests: state.manifests,
		Storage:   state.artifacts.Name(),
		Logger:    logger,
	})

	// 注册服务路由
	if err := imageService.Register(ctx, httpRouter.Root); err != nil {
		return nil, err
	}
	if err := healthService.Register(ctx, httpRouter.API); err != nil {
		return nil, err
	}

	router := httpRouter.Engine
	router.GET("/openapi.json", func(c *gin.Context) {
		doc, err := swag.ReadDoc()
		if err != nil {
			logger.ErrorTag("HTTP", "生成 OpenAPI 文档失败: %v", err)
			httptransport.RespondError(c, http.StatusInternalServerError, "failed to generate openapi spec", gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(doc))
	})

	router.GET("/docs", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(scalarHTML))
	})

	return httpRouter, nil
}

func startHTTPServer(state *appState, g *errgroup.Group, groupCtx context.Context) (*http.Server, error) {
	cfg := state.config
	logger := state.logger

	httpRouter, err := buildRouter(groupCtx, state)
	if err != nil {
		return nil, err
	}

	httpServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.IP, strconv.Itoa(cfg.Server.Port)),
		Handler:           httpRouter.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.InfoTag("HTTP", "Gin 服务已启动，访问地址 http://%s", httpServer.Addr)
		logger.InfoTag("HTTP", "在线文档入口: http://%s/docs", httpServer.Addr)

		go func() {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.ErrorTag("HTTP", "HTTP 服务关闭失败: %v", err)
			} else {
				logger.InfoTag("HTTP", "HTTP 服务已优雅关闭")
			}
		}()

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorTag("HTTP", "HTTP 服务启动失败: %v", err)
			return err
		}
		return nil
	})

	return httpServer, nil
}

func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	logger *platformlogging.Logger,
	g *errgroup.Group,
) error {
	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case <-ctx.Done():
		logger.InfoTag("引导", "收到系统信号 %v，正在进行资源清理", context.Cause(ctx))
	case err := <-done:
		// 服务提前退出，通常是端口占用
		if err != nil {
			logger.ErrorTag("引导", "服务运行失败: %v", err)
			return err
		}
		return nil
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			logger.ErrorTag("引导", "服务关闭过程中出现错误: %v", err)
			return err
		}
		logger.InfoTag("引导", "所有服务已成功关闭")
	case <-time.After(15 * time.Second):
		logger.ErrorTag("引导", "服务关闭超时，已强制退出")
		return errors.New("服务关闭超时")
	}
	return nil
}
