package index

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	verrors "github.com/Aman-CERP/vaultindex/internal/errors"
	"github.com/Aman-CERP/vaultindex/internal/fingerprint"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// memSource is an in-memory Source.
type memSource struct {
	mu      sync.Mutex
	docs    map[string]memDoc
	readErr map[string]error
}

type memDoc struct {
	content string
	mod     time.Time
}

func newMemSource() *memSource {
	return &memSource{docs: make(map[string]memDoc), readErr: make(map[string]error)}
}

// put writes a document; each write advances its modification time.
func (m *memSource) put(key, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mod := baseTime
	if prev, ok := m.docs[key]; ok {
		mod = prev.mod.Add(time.Second)
	}
	m.docs[key] = memDoc{content: content, mod: mod}
}

func (m *memSource) del(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, key)
}

func (m *memSource) failRead(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr[key] = err
}

func (m *memSource) Stat(_ context.Context, key string) (fingerprint.Doc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[key]
	if !ok {
		return fingerprint.Doc{}, verrors.New(verrors.ErrCodeDocumentNotFound, fmt.Sprintf("document %s not found", key), nil)
	}
	return fingerprint.Doc{Key: key, ModTime: d.mod, Size: int64(len(d.content))}, nil
}

func (m *memSource) Read(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.readErr[key]; err != nil {
		return nil, err
	}
	d, ok := m.docs[key]
	if !ok {
		return nil, verrors.New(verrors.ErrCodeDocumentNotFound, fmt.Sprintf("document %s not found", key), nil)
	}
	return []byte(d.content), nil
}

func (m *memSource) List(_ context.Context) ([]fingerprint.Doc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	docs := make([]fingerprint.Doc, 0, len(m.docs))
	for key, d := range m.docs {
		docs = append(docs, fingerprint.Doc{Key: key, ModTime: d.mod, Size: int64(len(d.content))})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Key < docs[j].Key })
	return docs, nil
}

// blockingProvider waits for its context to end.
type blockingProvider struct{}

func (blockingProvider) Embed(ctx context.Context, _ string) ([]float32, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
func (blockingProvider) Dimensions() int   { return 4 }
func (blockingProvider) ModelName() string { return "blocking" }
func (blockingProvider) Close() error      { return nil }

// lateProvider answers only when released and ignores cancellation, like an
// HTTP response already on the wire.
type lateProvider struct {
	started chan struct{}
	release chan struct{}
}

func newLateProvider() *lateProvider {
	return &lateProvider{started: make(chan struct{}, 1), release: make(chan struct{})}
}

func (p *lateProvider) Embed(context.Context, string) ([]float32, error) {
	select {
	case p.started <- struct{}{}:
	default:
	}
	<-p.release
	return []float32{1, 0, 0, 0}, nil
}
func (p *lateProvider) Dimensions() int   { return 4 }
func (p *lateProvider) ModelName() string { return "late" }
func (p *lateProvider) Close() error      { return nil }
