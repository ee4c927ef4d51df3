package cachesvc

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/NaveenRoman/AI-TUTor/core"
	"github.com/NaveenRoman/AI-TUTor/core/tutor"
)

const documentPrefix = keyPrefix + "doc:"

type redisDocumentStore struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ tutor.DocumentStore = (*redisDocumentStore)(nil)

// NewRedisDocumentStore keeps uploaded documents as JSON values expiring after ttl.
func NewRedisDocumentStore(rdb *redis.Client, ttl time.Duration) tutor.DocumentStore {
	return &redisDocumentStore{rdb: rdb, ttl: ttl}
}

func (s *redisDocumentStore) SaveDocument(ctx context.Context, doc tutor.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "encoding document")
	}
	return errors.Wrap(s.rdb.Set(ctx, documentPrefix+doc.ID, data, s.ttl).Err(), "saving document")
}

func (s *redisDocumentStore) GetDocument(ctx context.Context, id string) (tutor.Document, error) {
	data, err := s.rdb.Get(ctx, documentPrefix+id).Bytes()
	if err != nil {
		if err == redis.Nil {
			return tutor.Document{}, tutor.ErrDocumentNotFound
		}
		return tutor.Document{}, errors.Wrap(err, "getting document")
	}
	var doc tutor.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return tutor.Document{}, errors.Wrap(err, "decoding document")
	}
	return doc, nil
}

type memoryDocument struct {
	doc     tutor.Document
	expires time.Time
}

type memoryDocumentStore struct {
	mu   sync.RWMutex
	docs map[string]memoryDocument
	ttl  time.Duration
}

var _ tutor.DocumentStore = (*memoryDocumentStore)(nil)

// NewMemoryDocumentStore is the process local DocumentStore used when redis is disabled.
func NewMemoryDocumentStore(ttl time.Duration) tutor.DocumentStore {
	return &memoryDocumentStore{docs: make(map[string]memoryDocument), ttl: ttl}
}

func (s *memoryDocumentStore) SaveDocument(_ context.Context, doc tutor.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := core.Now()
	for id, d := range s.docs {
		if now.After(d.expires) {
			delete(s.docs, id)
		}
	}
	s.docs[doc.ID] = memoryDocument{doc: doc, expires: now.Add(s.ttl)}
	return nil
}

func (s *memoryDocumentStore) GetDocument(_ context.Context, id string) (tutor.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.docs[id]
	if !ok || core.Now().After(d.expires) {
		return tutor.Document{}, tutor.ErrDocumentNotFound
	}
	return d.doc, nil
}
