package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/mbeoliero/kit/log"
	"github.com/mbeoliero/parley/internal/config"
	"github.com/mbeoliero/parley/internal/directory"
	"github.com/mbeoliero/parley/internal/handler"
	"github.com/mbeoliero/parley/internal/job"
	"github.com/mbeoliero/parley/internal/repository"
	"github.com/mbeoliero/parley/internal/router"
	"github.com/mbeoliero/parley/internal/service"
	"github.com/mbeoliero/parley/pkg/constant"
	"github.com/mbeoliero/parley/pkg/idgen"
	"github.com/mbeoliero/parley/pkg/objstore"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.CtxError(ctx, "failed to load config: %v", err)
		panic(err)
	}
	log.CtxInfo(ctx, "config loaded: mode=%s", cfg.Server.Mode)

	constant.InitRedisKeyPrefix(cfg.Redis.KeyPrefix)
	log.CtxInfo(ctx, "redis key prefix: %s", constant.GetRedisKeyPrefix())

	repos, err := repository.NewRepositories(cfg)
	if err != nil {
		log.CtxError(ctx, "failed to initialize repositories: %v", err)
		panic(err)
	}
	defer func() { _ = repos.Close() }()

	if err := repos.CheckConnection(ctx); err != nil {
		log.CtxError(ctx, "database connection check failed: %v", err)
		panic(err)
	}
	log.CtxInfo(ctx, "database connection established")

	if cfg.MySQL.AutoMigrate {
		if err := repos.AutoMigrate(ctx); err != nil {
			log.CtxError(ctx, "auto migrate failed: %v", err)
			panic(err)
		}
	}

	dir, err := newDirectory(cfg, repos)
	if err != nil {
		log.CtxError(ctx, "failed to initialize profile directory: %v", err)
		panic(err)
	}

	store, err := newObjectStore(ctx, cfg)
	if err != nil {
		log.CtxError(ctx, "failed to initialize object store: %v", err)
		panic(err)
	}

	convService := service.NewConversationService(repos, dir)
	threadService := service.NewThreadService(repos, dir)
	msgService := service.NewMessageService(repos, threadService, cfg.History)
	attachmentService := service.NewAttachmentService(store, repos.Redis, cfg.Attachment)
	attachmentService.SetReferenceChecker(repos.Message)
	msgService.SetAttachmentClaimer(attachmentService)

	clientIds, err := idgen.New(cfg.Message.IDGenerator, cfg.Message.MachineID)
	if err != nil {
		log.CtxError(ctx, "failed to initialize id generator: %v", err)
		panic(err)
	}
	msgService.SetIDGenerator(clientIds)

	jobs := job.NewManager()
	if cfg.Attachment.SweepSpec != "" {
		if err := jobs.Register(cfg.Attachment.SweepSpec, job.NewAttachmentSweepJob(attachmentService, cfg.Attachment.PendingTTL)); err != nil {
			log.CtxError(ctx, "invalid attachment sweep schedule: %v", err)
			panic(err)
		}
	}
	jobs.Start()

	handlers := &router.Handlers{
		Profile:      handler.NewProfileHandler(service.NewProfileService(dir)),
		Conversation: handler.NewConversationHandler(convService, threadService),
		Thread:       handler.NewThreadHandler(threadService),
		Message:      handler.NewMessageHandler(msgService),
		Attachment:   handler.NewAttachmentHandler(attachmentService),
	}

	h := server.New(
		server.WithHostPorts(fmt.Sprintf(":%d", cfg.Server.HTTPPort)),
		server.WithMaxRequestBodySize(requestBodyLimit(cfg.Attachment)),
		server.WithExitWaitTime(shutdownTimeout),
	)
	router.SetupRouter(h.Engine, handlers, cfg)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.CtxInfo(ctx, "server starting on port %d", cfg.Server.HTTPPort)
		return h.Run()
	})
	g.Go(func() error {
		<-gctx.Done()
		log.CtxInfo(ctx, "shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		jobs.Stop(shutdownCtx)
		return h.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.CtxError(ctx, "server stopped with error: %v", err)
		return
	}
	log.CtxInfo(ctx, "server stopped")
}

func newDirectory(cfg *config.Config, repos *repository.Repositories) (directory.Directory, error) {
	var dir directory.Directory
	switch cfg.Directory.Source {
	case config.DirectorySourceHTTP:
		var opts []directory.HTTPOption
		if cfg.Directory.ServiceToken != "" {
			opts = append(opts, directory.WithServiceToken(cfg.Directory.ServiceToken))
		}
		httpDir, err := directory.NewHTTPDirectory(cfg.Directory.BaseURL, cfg.Directory.Timeout, opts...)
		if err != nil {
			return nil, err
		}
		dir = httpDir
	case config.DirectorySourceDB:
		dir = directory.NewDBDirectory(repos.Profile)
	default:
		return nil, fmt.Errorf("unknown directory source %q", cfg.Directory.Source)
	}

	if cfg.Directory.CacheTTL > 0 {
		dir = directory.NewCachedDirectory(dir, repos.Redis, cfg.Directory.CacheTTL)
	}
	return dir, nil
}

func newObjectStore(ctx context.Context, cfg *config.Config) (objstore.Store, error) {
	if cfg.MinIO.Endpoint == "" {
		log.CtxWarn(ctx, "minio endpoint not set, attachments are kept in memory")
		return objstore.NewMemoryStore(""), nil
	}
	return objstore.NewMinioStore(ctx, objstore.MinioConfig{
		Endpoint:      cfg.MinIO.Endpoint,
		AccessKey:     cfg.MinIO.AccessKey,
		SecretKey:     cfg.MinIO.SecretKey,
		Bucket:        cfg.MinIO.Bucket,
		UseSSL:        cfg.MinIO.UseSSL,
		PublicBaseURL: cfg.MinIO.PublicBaseURL,
	})
}

// requestBodyLimit fits a full batch of maximum size files plus form overhead
func requestBodyLimit(cfg config.AttachmentConfig) int {
	return int(cfg.MaxFileSize)*max(cfg.MaxFiles, 1) + 1<<20
}
