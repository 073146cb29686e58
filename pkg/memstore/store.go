// Package memstore is memoryd's backing index: a sqlite record store for
// the authoritative per-user memory list plus a chromem-go vector
// collection per user for similarity search.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	ollamaembed "github.com/cloudwego/eino-ext/components/embedding/ollama"
	openaiembed "github.com/cloudwego/eino-ext/components/embedding/openai"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/voxhall/voxhall/pkg/config"
	"github.com/voxhall/voxhall/pkg/logging"
)

var (
	ErrEmptyUsername = errors.New("username cannot be empty")
	ErrEmptyMessage  = errors.New("message cannot be empty")
)

// Store owns the relational rows and the vector collections.
type Store struct {
	db      *gorm.DB
	vectors *chromem.DB
	embed   chromem.EmbeddingFunc
	logger  *slog.Logger

	collections sync.Map // username -> *chromem.Collection
}

// Open creates or opens the store at the configured paths, building the
// embedding function for the configured provider.
func Open(ctx context.Context, cfg config.MemoryConfig) (*Store, error) {
	embed, err := newEmbeddingFunc(ctx, cfg.Embedding)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open memory db %s: %w", cfg.DBPath, err)
	}

	var vectors *chromem.DB
	if cfg.VectorPath != "" {
		if err := os.MkdirAll(cfg.VectorPath, 0o755); err != nil {
			return nil, fmt.Errorf("create vector store dir %s: %w", cfg.VectorPath, err)
		}
		vectors, err = chromem.NewPersistentDB(cfg.VectorPath, false)
		if err != nil {
			return nil, fmt.Errorf("open vector store %s: %w", cfg.VectorPath, err)
		}
	} else {
		vectors = chromem.NewDB()
	}

	return newStore(db, vectors, embed)
}

// OpenWithEmbedding opens an in-memory store with a caller-supplied
// embedding function. Tests use this to stay deterministic and offline.
func OpenWithEmbedding(dbPath string, embed chromem.EmbeddingFunc) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open memory db %s: %w", dbPath, err)
	}
	return newStore(db, chromem.NewDB(), embed)
}

func newStore(db *gorm.DB, vectors *chromem.DB, embed chromem.EmbeddingFunc) (*Store, error) {
	s := &Store{
		db:      db,
		vectors: vectors,
		embed:   embed,
		logger:  logging.Get(),
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("migrate memory schema: %w", err)
	}
	return s, nil
}

// newEmbeddingFunc wraps an eino embedder for the configured provider as a
// chromem embedding function.
func newEmbeddingFunc(ctx context.Context, cfg config.EmbeddingConfig) (chromem.EmbeddingFunc, error) {
	var (
		embedder embedding.Embedder
		err      error
	)
	switch cfg.Provider {
	case "openai":
		embedder, err = openaiembed.NewEmbedder(ctx, &openaiembed.EmbeddingConfig{
			APIKey: cfg.APIKey,
			Model:  cfg.Model,
		})
	case "ollama":
		embedder, err = ollamaembed.NewEmbedder(ctx, &ollamaembed.EmbeddingConfig{
			BaseURL: cfg.OllamaURL,
			Model:   cfg.Model,
		})
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s embedder: %w", cfg.Provider, err)
	}

	return func(ctx context.Context, text string) ([]float32, error) {
		vecs, err := embedder.EmbedStrings(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		if len(vecs) == 0 {
			return nil, errors.New("no embeddings returned")
		}
		out := make([]float32, len(vecs[0]))
		for i, v := range vecs[0] {
			out[i] = float32(v)
		}
		return out, nil
	}, nil
}

// Add stores one memory for the user. Metadata always gains stored-at and
// owning-username keys so later filtering works regardless of what the
// caller sent.
func (s *Store) Add(ctx context.Context, username, text string, metadata map[string]any) (*Record, error) {
	username = strings.TrimSpace(username)
	text = strings.TrimSpace(text)
	if username == "" {
		return nil, ErrEmptyUsername
	}
	if text == "" {
		return nil, ErrEmptyMessage
	}

	now := time.Now().UTC()
	meta := JSONMap{}
	for k, v := range metadata {
		meta[k] = v
	}
	meta["stored_at"] = now.Format(time.RFC3339)
	meta["username"] = username

	rec := &Record{
		ID:        uuid.New().String(),
		Username:  username,
		Text:      text,
		Metadata:  meta,
		CreatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, fmt.Errorf("store memory: %w", err)
	}

	// The vector side is advisory; a failed embedding leaves the row
	// retrievable by recency but not by similarity.
	if col, err := s.collection(ctx, username); err != nil {
		s.logger.Warn("Vector collection unavailable", "user", username, "error", err)
	} else if err := col.AddDocument(ctx, chromem.Document{
		ID:      rec.ID,
		Content: rec.Text,
		Metadata: map[string]string{
			"username":  username,
			"stored_at": meta["stored_at"].(string),
		},
	}); err != nil {
		s.logger.Warn("Failed to index memory", "user", username, "id", rec.ID, "error", err)
	}

	s.logger.Info("Memory stored", "user", username, "id", rec.ID)
	return rec, nil
}

// Search returns up to limit records relevant to the query, ordered by
// descending similarity. Limit bounds are enforced by the HTTP layer; here
// the limit is only clamped to the collection size as the vector store
// requires.
func (s *Store) Search(ctx context.Context, username, query string, limit int) ([]SearchResult, error) {
	username = strings.TrimSpace(username)
	query = strings.TrimSpace(query)
	if username == "" {
		return nil, ErrEmptyUsername
	}
	if query == "" {
		return nil, ErrEmptyMessage
	}

	col, err := s.collection(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("vector collection for %s: %w", username, err)
	}
	if n := col.Count(); n == 0 {
		return []SearchResult{}, nil
	} else if limit > n {
		limit = n
	}

	hits, err := col.Query(ctx, query, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if len(hits) == 0 {
		return []SearchResult{}, nil
	}

	ids := make([]string, len(hits))
	scores := make(map[string]float64, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
		scores[h.ID] = float64(h.Similarity)
	}

	var rows []Record
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load search rows: %w", err)
	}

	results := make([]SearchResult, len(rows))
	for i, r := range rows {
		results[i] = SearchResult{Record: r, Score: scores[r.ID]}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results, nil
}

// GetAll returns up to limit records for the user, most recent first.
func (s *Store) GetAll(ctx context.Context, username string, limit int) ([]Record, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrEmptyUsername
	}

	var rows []Record
	err := s.db.WithContext(ctx).
		Where("username = ?", username).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	return rows, nil
}

// DeleteAll removes every record for the user and returns the number of
// rows deleted.
func (s *Store) DeleteAll(ctx context.Context, username string) (int, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return 0, ErrEmptyUsername
	}

	res := s.db.WithContext(ctx).Where("username = ?", username).Delete(&Record{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete memories: %w", res.Error)
	}

	s.collections.Delete(username)
	if err := s.vectors.DeleteCollection(collectionName(username)); err != nil {
		s.logger.Warn("Failed to drop vector collection", "user", username, "error", err)
	}

	s.logger.Info("Deleted memories", "user", username, "count", res.RowsAffected)
	return int(res.RowsAffected), nil
}

// Healthy reports whether the relational store answers.
func (s *Store) Healthy(ctx context.Context) bool {
	sqlDB, err := s.db.DB()
	if err != nil {
		return false
	}
	return sqlDB.PingContext(ctx) == nil
}

func (s *Store) collection(ctx context.Context, username string) (*chromem.Collection, error) {
	if cached, ok := s.collections.Load(username); ok {
		return cached.(*chromem.Collection), nil
	}

	col, err := s.vectors.GetOrCreateCollection(collectionName(username), nil, s.embed)
	if err != nil {
		return nil, err
	}
	s.collections.Store(username, col)
	return col, nil
}

func collectionName(username string) string {
	return "user-" + strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, username)
}
