package main

import (
	"context"
	"fmt"

	"go-report-pipeline/internal/archive"
	"go-report-pipeline/internal/config"
	"go-report-pipeline/internal/logger"
	"go-report-pipeline/internal/notify"
	"go-report-pipeline/internal/pipeline"
	"go-report-pipeline/internal/spapi"
	"go-report-pipeline/internal/store"
	"go-report-pipeline/pkg/utils"

	"go.uber.org/zap"
)

// app holds everything a command needs
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	outputs *utils.OutputManager
	runner  *pipeline.Runner
	closers []func() error
}

func newApp(ctx context.Context, envFile string) (*app, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	a := &app{cfg: cfg, logger: log}

	if err := store.InitDB(cfg.DB.Path); err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a.closers = append(a.closers, store.Close)

	a.outputs = utils.NewOutputManager(cfg.Export.Dir)
	if err := a.outputs.EnsureOutputDirExists(); err != nil {
		a.Close()
		return nil, err
	}

	var archiver pipeline.Archiver
	if cfg.MinIO.Endpoint != "" {
		objects, err := archive.New(ctx, archive.Config{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			Bucket:    cfg.MinIO.Bucket,
			UseSSL:    cfg.MinIO.UseSSL,
		}, log.Named("archive"))
		if err != nil {
			a.Close()
			return nil, err
		}
		archiver = objects
	}

	var events pipeline.Notifier = notify.Noop{}
	if cfg.AMQP.URL != "" {
		pub, err := notify.Dial(ctx, cfg.AMQP.URL, cfg.AMQP.Queue, log.Named("notify"))
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, pub.Close)
		events = pub
	}

	if !cfg.SPAPI.Credentials() {
		log.Warn("report API credentials are not set; runs will fail at submission")
	}
	client := spapi.New(spapi.Config{
		Endpoint:      cfg.SPAPI.Endpoint,
		TokenURL:      cfg.SPAPI.TokenURL,
		ClientID:      cfg.SPAPI.ClientID,
		ClientSecret:  cfg.SPAPI.ClientSecret,
		RefreshToken:  cfg.SPAPI.RefreshToken,
		MarketplaceID: cfg.SPAPI.MarketplaceID,
		Rate:          cfg.SPAPI.Rate,
		Burst:         cfg.SPAPI.Burst,
		Logger:        log.Named("spapi"),
	})

	p := cfg.Pipeline
	a.runner = pipeline.NewRunner(pipeline.Deps{
		BaseContext: ctx,
		API:         client,
		Lister:      client,
		Shipments:   spapi.ShipmentSource{Client: client},
		Fees:        spapi.OrderFeeSource{Client: client},
		Store:       store.Repository{},
		Export:      pipeline.NewExportManager(a.outputs, archiver, log.Named("export")),
		Events:      events,
		Logger:      log,
	}, pipeline.Options{
		MarketplaceID: client.MarketplaceID(),
		PollInterval:  p.PollInterval,
		MaxPolls:      p.MaxPolls,
		Enrich: pipeline.EnrichOptions{
			BatchSize:       p.EnrichBatchSize,
			InterBatchDelay: p.EnrichBatchDelay,
			InterItemDelay:  p.EnrichItemDelay,
		},
		ScanMaxWindows:  p.ScanMaxWindows,
		ScanTargetCount: p.ScanTargetCount,
		ScanWindowDelay: p.ScanWindowDelay,
		RunTimeout:      p.RunTimeout,
		PendingFeeLimit: p.PendingFeeLimit,
	})
	return a, nil
}

// Close releases resources in reverse order of acquisition
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}
	a.logger.Sync()
}
