package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Aman-CERP/vaultindex/internal/config"
	"github.com/Aman-CERP/vaultindex/internal/embed"
	"github.com/Aman-CERP/vaultindex/internal/index"
	"github.com/Aman-CERP/vaultindex/internal/logging"
	"github.com/Aman-CERP/vaultindex/internal/metrics"
	"github.com/Aman-CERP/vaultindex/internal/persist"
	"github.com/Aman-CERP/vaultindex/internal/queue"
	"github.com/Aman-CERP/vaultindex/internal/scanner"
	"github.com/Aman-CERP/vaultindex/internal/search"
	"github.com/Aman-CERP/vaultindex/internal/store"
	"github.com/Aman-CERP/vaultindex/internal/watcher"
)

// vaultOptions controls how openVault builds the pipeline.
type vaultOptions struct {
	// force discards the stored snapshot and queue state first.
	force bool

	// watch attaches a filesystem watcher as the change source.
	watch bool

	// serve keeps all logging off the terminal streams.
	serve bool

	// registry receives the pipeline metrics; nil uses a private one.
	registry prometheus.Registerer
}

// vault is an opened vault: configuration, collaborators and the running
// index service.
type vault struct {
	root     string
	cfg      *config.Config
	logger   *slog.Logger
	scanner  *scanner.Scanner
	provider embed.Provider
	storage  persist.Storage
	metrics  *metrics.Metrics
	svc      *index.Service

	logCleanup func()
}

// loadVaultConfig resolves the vault root for path and loads its config.
func loadVaultConfig(path string) (string, *config.Config, error) {
	root, err := config.FindVaultRoot(path)
	if err != nil {
		return "", nil, err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return "", nil, fmt.Errorf("failed to load config: %w", err)
	}
	return root, cfg, nil
}

// openVault loads configuration for the vault containing path and opens
// its index service. The caller must Close the result.
func openVault(ctx context.Context, path string, opts vaultOptions) (_ *vault, err error) {
	root, cfg, err := loadVaultConfig(path)
	if err != nil {
		return nil, err
	}

	v := &vault{root: root, cfg: cfg}
	defer func() {
		if err != nil {
			v.release()
		}
	}()

	if err := v.setupLogging(opts.serve); err != nil {
		return nil, err
	}

	v.scanner, err = scanner.New(scanner.Options{
		Root:            root,
		Extensions:      cfg.Vault.Extensions,
		ExcludePatterns: cfg.Vault.Exclude,
		MaxFileSize:     cfg.Vault.MaxFileSize,
	})
	if err != nil {
		return nil, err
	}

	v.provider, err = newProvider(cfg)
	if err != nil {
		return nil, err
	}

	v.storage, err = persist.Open(cfg.Persistence.Backend, cfg.DataDir(root))
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	if opts.force {
		if err := discardState(ctx, v.storage); err != nil {
			return nil, err
		}
		v.logger.Info("stored_state_discarded", slog.String("vault", root))
	}

	v.metrics = metrics.New(opts.registry)
	deps := index.Dependencies{
		Source:        v.scanner,
		Provider:      v.provider,
		Storage:       v.storage,
		Logger:        v.logger,
		QueueObserver: v.metrics,
		Recorder:      v.metrics,
		SearchRecord:  v.metrics,
	}
	if opts.watch {
		w, err := watcher.NewHybridWatcher(v.scanner, watcher.Options{
			PollInterval: cfg.Watch.PollInterval,
			ForcePolling: cfg.Watch.ForcePolling,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create watcher: %w", err)
		}
		deps.Changes = w
	}

	v.svc, err = index.Open(ctx, serviceConfig(cfg), deps)
	if err != nil {
		return nil, err
	}

	info := v.svc.Info()
	v.logger.Info("vault_opened",
		slog.String("vault", root),
		slog.String("provider", cfg.Embeddings.Provider),
		slog.String("model", v.provider.ModelName()),
		slog.Bool("restored", info.Restored),
		slog.Bool("rebuilt", info.Rebuilt),
		slog.Int("documents", info.Documents),
		slog.Int("queued", info.QueuedItems))
	return v, nil
}

// setupLogging routes the vault's logs to the configured file. With
// --debug the process-wide debug logger is used instead.
func (v *vault) setupLogging(serve bool) error {
	if debugMode {
		v.logger = slog.Default()
		return nil
	}

	logCfg := logging.Config{
		Level:     v.cfg.Logging.Level,
		FilePath:  v.cfg.Logging.File,
		MaxSizeMB: v.cfg.Logging.MaxSizeMB,
		MaxFiles:  v.cfg.Logging.MaxFiles,
	}
	if logCfg.FilePath == "" {
		logCfg.FilePath = logging.DefaultLogPath()
	}
	if serve {
		logCfg = logging.ServeMode(logCfg)
	}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	v.logger = logger
	v.logCleanup = cleanup
	return nil
}

// Close stops the service, saving its state, and releases every
// collaborator.
func (v *vault) Close(ctx context.Context) error {
	var errs []error
	if v.svc != nil {
		errs = append(errs, v.svc.Close(ctx))
		v.svc = nil
	}
	errs = append(errs, v.release())
	return errors.Join(errs...)
}

func (v *vault) release() error {
	var errs []error
	if v.provider != nil {
		errs = append(errs, v.provider.Close())
		v.provider = nil
	}
	if v.storage != nil {
		errs = append(errs, v.storage.Close())
		v.storage = nil
	}
	if v.logCleanup != nil {
		v.logCleanup()
		v.logCleanup = nil
	}
	return errors.Join(errs...)
}

// newProvider builds the embedding provider described by cfg.
func newProvider(cfg *config.Config) (embed.Provider, error) {
	kind, err := embed.ParseProviderType(cfg.Embeddings.Provider)
	if err != nil {
		return nil, err
	}
	p, err := embed.NewProvider(embed.Config{
		Provider:   kind,
		Model:      cfg.Embeddings.Model,
		Dimensions: cfg.Embeddings.Dimensions,
		Host:       cfg.Embeddings.Host,
		RateLimit:  cfg.Embeddings.RateLimit,
		RateBurst:  cfg.Embeddings.RateBurst,
		CacheSize:  cfg.Embeddings.CacheSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding provider: %w", err)
	}
	return p, nil
}

// serviceConfig maps the file configuration onto the index service.
func serviceConfig(cfg *config.Config) index.Config {
	return index.Config{
		Queue: queue.Config{
			Concurrency: cfg.Queue.Concurrency,
			MaxRetries:  cfg.Queue.MaxRetries,
			Retry: queue.RetryPolicy{
				Base: cfg.Queue.BackoffBase,
				Max:  cfg.Queue.BackoffMax,
			},
			FailureLedgerSize: cfg.Queue.FailureLedgerSize,
		},
		Index: store.Options{
			Dimensions:    cfg.Embeddings.Dimensions,
			VectorBackend: cfg.Index.VectorBackend,
			PreviewLength: cfg.Index.PreviewLength,
		},
		Search: search.EngineConfig{
			DefaultLimit:  cfg.Search.DefaultLimit,
			RRFConstant:   cfg.Search.RRFConstant,
			KeywordWeight: cfg.Search.KeywordWeight,
			VectorWeight:  cfg.Search.VectorWeight,
			EmbedTimeout:  cfg.Embeddings.Timeout,
		},
		DebounceDelay: cfg.Watch.Debounce,
		EmbedTimeout:  cfg.Embeddings.Timeout,
		SaveInterval:  cfg.Persistence.SaveInterval,
	}
}

// discardState removes the stored snapshot and queue state.
func discardState(ctx context.Context, storage persist.Storage) error {
	for _, key := range []string{persist.IndexSnapshotKey, persist.QueueStateKey} {
		if err := storage.DeleteBytes(ctx, key); err != nil {
			return fmt.Errorf("failed to discard %s: %w", key, err)
		}
	}
	return nil
}

// providerName is the configured provider, normalized.
func providerName(cfg *config.Config) string {
	kind, err := embed.ParseProviderType(cfg.Embeddings.Provider)
	if err != nil {
		return cfg.Embeddings.Provider
	}
	return string(kind)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
