// Package index runs the incremental indexing pipeline: it turns document
// changes into queued work, processes that work into index records, and
// keeps the index, queue and fingerprints persisted across restarts.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/Aman-CERP/vaultindex/internal/embed"
	verrors "github.com/Aman-CERP/vaultindex/internal/errors"
	"github.com/Aman-CERP/vaultindex/internal/extract"
	"github.com/Aman-CERP/vaultindex/internal/fingerprint"
	"github.com/Aman-CERP/vaultindex/internal/queue"
	"github.com/Aman-CERP/vaultindex/internal/store"
)

// MaxEmbedRunes bounds the text sent to the embedding provider.
const MaxEmbedRunes = 8000

// ErrDocumentNotFound matches (via errors.Is) any error reporting that a
// document no longer exists.
var ErrDocumentNotFound = verrors.New(verrors.ErrCodeDocumentNotFound, "document not found", nil)

// Source gives the pipeline access to document content.
// scanner.Scanner is the filesystem implementation.
type Source interface {
	// Read returns the raw document content.
	Read(ctx context.Context, key string) ([]byte, error)

	// Stat returns the fingerprint inputs of a document.
	Stat(ctx context.Context, key string) (fingerprint.Doc, error)

	// List returns every indexable document.
	List(ctx context.Context) ([]fingerprint.Doc, error)
}

// Recorder receives indexing telemetry.
type Recorder interface {
	EmbeddingObserved(d time.Duration, err error)
	IndexSizeChanged(docs int)
}

type nopRecorder struct{}

func (nopRecorder) EmbeddingObserved(time.Duration, error) {}
func (nopRecorder) IndexSizeChanged(int)                   {}

// WorkerDependencies contains the injected dependencies for Worker.
type WorkerDependencies struct {
	Source   Source
	Provider embed.Provider
	Index    *store.Index
	Cache    *fingerprint.Cache

	// Optional
	Logger   *slog.Logger
	Recorder Recorder

	// CommitLock guards index and cache writes. Share it with the
	// Coordinator so a delete cannot interleave with a commit.
	CommitLock sync.Locker
}

// Worker turns one queued document key into an index record.
type Worker struct {
	source       Source
	provider     embed.Provider
	index        *store.Index
	cache        *fingerprint.Cache
	embedTimeout time.Duration
	logger       *slog.Logger
	recorder     Recorder
	commitLock   sync.Locker
}

// NewWorker creates a Worker. embedTimeout bounds each provider call.
func NewWorker(deps WorkerDependencies, embedTimeout time.Duration) (*Worker, error) {
	if deps.Source == nil {
		return nil, fmt.Errorf("source is required")
	}
	if deps.Provider == nil {
		return nil, fmt.Errorf("embedding provider is required")
	}
	if deps.Index == nil {
		return nil, fmt.Errorf("index is required")
	}
	if deps.Cache == nil {
		return nil, fmt.Errorf("fingerprint cache is required")
	}

	w := &Worker{
		source:       deps.Source,
		provider:     deps.Provider,
		index:        deps.Index,
		cache:        deps.Cache,
		embedTimeout: embedTimeout,
		logger:       deps.Logger,
		recorder:     deps.Recorder,
		commitLock:   deps.CommitLock,
	}
	if w.commitLock == nil {
		w.commitLock = &sync.Mutex{}
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	if w.recorder == nil {
		w.recorder = nopRecorder{}
	}
	return w, nil
}

// Process indexes the document named by item.Key. It is the queue's
// ProcessFunc; returned errors are classified by the queue.
func (w *Worker) Process(ctx context.Context, item queue.Item) error {
	key := item.Key

	// Stat before reading: the fingerprint must describe the content that
	// was indexed, not a later write.
	doc, err := w.source.Stat(ctx, key)
	if err != nil {
		return w.sourceError(key, err)
	}

	content, err := w.source.Read(ctx, key)
	if err != nil {
		return w.sourceError(key, err)
	}

	res := extract.Markdown(content, extract.TitleFromPath(key))
	if res.Text == "" {
		err := w.commit(ctx, func() error {
			// A document emptied in place must not keep its old record.
			if w.index.Exists(key) {
				_ = w.index.Remove(key)
				w.recorder.IndexSizeChanged(w.index.Len())
			}
			w.cache.Update(doc)
			return nil
		})
		if err != nil {
			return err
		}
		return verrors.Terminal(verrors.ErrCodeEmptyContent,
			fmt.Sprintf("%s has no indexable text", key), nil)
	}

	vec, err := w.embed(ctx, embedInput(res))
	if err != nil {
		return err
	}

	rec := store.Record{
		ID:             key,
		Title:          res.Title,
		ContentPreview: res.Text,
		Vector:         vec,
		Metadata: store.Metadata{
			SourcePath:     key,
			LastModified:   doc.ModTime,
			SizeBytes:      doc.Size,
			VectorizedAt:   time.Now().UTC(),
			EmbeddingModel: w.provider.ModelName(),
		},
	}
	err = w.commit(ctx, func() error {
		if err := w.index.Upsert(rec); err != nil {
			var mismatch store.ErrDimensionMismatch
			if errors.As(err, &mismatch) {
				w.logger.Error("index_dimension_mismatch",
					slog.String("key", key),
					slog.Int("expected", mismatch.Expected),
					slog.Int("got", mismatch.Got),
					slog.String("model", w.provider.ModelName()))
			}
			return verrors.Terminal(verrors.ErrCodeIndexFailed, "upsert "+key, err)
		}
		w.cache.Update(doc)
		w.recorder.IndexSizeChanged(w.index.Len())
		return nil
	})
	if err != nil {
		return err
	}

	w.logger.Debug("document_indexed",
		slog.String("key", key),
		slog.Int("retry_count", item.RetryCount),
		slog.Int("dimensions", len(vec)))
	return nil
}

// commit runs apply under the commit lock unless the job was cancelled.
// Removing a key cancels its running job under the same lock, so a
// cancelled job never writes a deleted document back.
func (w *Worker) commit(ctx context.Context, apply func() error) error {
	w.commitLock.Lock()
	defer w.commitLock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return apply()
}

// embed calls the provider under the configured timeout.
func (w *Worker) embed(ctx context.Context, text string) ([]float32, error) {
	embedCtx, cancel := embed.WithTimeout(ctx, w.embedTimeout)
	defer cancel()

	start := time.Now()
	vec, err := w.provider.Embed(embedCtx, text)
	w.recorder.EmbeddingObserved(time.Since(start), err)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) && verrors.GetCode(err) == "" {
			return nil, verrors.New(verrors.ErrCodeNetworkTimeout, "embedding timed out", err)
		}
		return nil, err
	}
	return vec, nil
}

// sourceError keeps transient read failures retryable and makes a vanished
// document terminal.
func (w *Worker) sourceError(key string, err error) error {
	if errors.Is(err, ErrDocumentNotFound) {
		w.logger.Debug("document_vanished", slog.String("key", key))
		return verrors.Terminal(verrors.ErrCodeDocumentNotFound, key+" no longer exists", err)
	}
	return err
}

// embedInput is the title followed by the body, bounded to MaxEmbedRunes.
func embedInput(res extract.Result) string {
	text := res.Text
	if res.Title != "" {
		text = res.Title + "\n\n" + text
	}
	if utf8.RuneCountInString(text) <= MaxEmbedRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:MaxEmbedRunes])
}
