package retrieval

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	chromem "github.com/philippgille/chromem-go"
)

const (
	defaultCollection = "barqcoder_code"
	defaultEmbedModel = "nomic-embed-text"
	defaultOllamaURL  = "http://localhost:11434/api"
)

// Config configures the vector store.
type Config struct {
	// Path is the directory for persistent storage. Empty keeps the
	// index in memory only.
	Path string
	// Collection names the document collection.
	Collection string
	// EmbedModel is the Ollama embedding model.
	EmbedModel string
	// OllamaURL is the Ollama API base used for embeddings.
	OllamaURL string
	// EmbeddingFunc overrides the Ollama embedder when set.
	EmbeddingFunc chromem.EmbeddingFunc
}

// Store is a chromem-backed Retriever over indexed code chunks.
type Store struct {
	db         *chromem.DB
	collection *chromem.Collection

	mu    sync.RWMutex
	graph map[string][]string
}

// NewStore opens or creates the vector store.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Collection == "" {
		cfg.Collection = defaultCollection
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = defaultEmbedModel
	}
	if cfg.OllamaURL == "" {
		cfg.OllamaURL = defaultOllamaURL
	}
	embed := cfg.EmbeddingFunc
	if embed == nil {
		embed = chromem.NewEmbeddingFuncOllama(cfg.EmbedModel, cfg.OllamaURL)
	}

	var db *chromem.DB
	var err error
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("retrieval: create store dir: %w", err)
		}
		db, err = chromem.NewPersistentDB(cfg.Path, false)
		if err != nil {
			return nil, fmt.Errorf("retrieval: open store: %w", err)
		}
	}
	collection, err := db.GetOrCreateCollection(cfg.Collection, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("retrieval: collection %q: %w", cfg.Collection, err)
	}
	return &Store{
		db:         db,
		collection: collection,
		graph:      map[string][]string{},
	}, nil
}

// Add stores one document chunk.
func (s *Store) Add(ctx context.Context, doc Document) error {
	err := s.collection.AddDocument(ctx, chromem.Document{
		ID:      doc.ID,
		Content: doc.Content,
		Metadata: map[string]string{
			"file": doc.File,
			"line": fmt.Sprintf("%d", doc.Line),
			"lang": doc.Lang,
		},
	})
	if err != nil {
		return fmt.Errorf("retrieval: add %q: %w", doc.ID, err)
	}
	return nil
}

// Count reports the number of indexed chunks.
func (s *Store) Count() int {
	return s.collection.Count()
}

func (s *Store) Query(ctx context.Context, text string, topK int) ([]Hit, error) {
	if topK <= 0 {
		topK = 5
	}
	count := s.collection.Count()
	if count == 0 {
		return []Hit{}, nil
	}
	if topK > count {
		topK = count
	}
	results, err := s.collection.Query(ctx, text, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("retrieval: query: %w", err)
	}
	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hit := Hit{
			File:    r.Metadata["file"],
			Content: r.Content,
			Score:   float64(r.Similarity),
		}
		fmt.Sscanf(r.Metadata["line"], "%d", &hit.Line)
		hits = append(hits, hit)
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	return hits, nil
}

// QueryLang runs Query and keeps only hits from files of the given
// language. Filtering happens after ranking, so fewer than topK hits may
// return.
func (s *Store) QueryLang(ctx context.Context, text string, topK int, lang string) ([]Hit, error) {
	hits, err := s.Query(ctx, text, topK)
	if err != nil || lang == "" {
		return hits, err
	}
	filtered := hits[:0]
	for _, h := range hits {
		if langForFile(h.File) == lang {
			filtered = append(filtered, h)
		}
	}
	return filtered, nil
}

func (s *Store) GraphDeps(symbol string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	deps := s.graph[symbol]
	out := make([]string, len(deps))
	copy(out, deps)
	return out
}

func (s *Store) setGraph(graph map[string][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graph = graph
}
