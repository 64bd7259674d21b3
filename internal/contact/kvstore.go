package contact

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"authorsite/api/internal/localstore"
	"authorsite/api/internal/store"
)

// MessagesKey is the local store key of the message list.
const MessagesKey = "contact-messages"

// KVStore keeps messages in the local data directory when no database is configured.
type KVStore struct {
	kv *localstore.KV
	mu sync.Mutex
}

func NewKVStore(kv *localstore.KV) *KVStore {
	return &KVStore{kv: kv}
}

func (s *KVStore) read() ([]store.ContactMessage, error) {
	data, ok, err := s.kv.Get(MessagesKey)
	if err != nil || !ok {
		return nil, err
	}
	var items []store.ContactMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode contact messages: %w", err)
	}
	return items, nil
}

func (s *KVStore) write(items []store.ContactMessage) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode contact messages: %w", err)
	}
	return s.kv.Set(MessagesKey, data)
}

func (s *KVStore) InsertContactMessage(ctx context.Context, msg store.ContactMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := s.read()
	if err != nil {
		return err
	}
	return s.write(append(items, msg))
}

func (s *KVStore) ListContactMessages(ctx context.Context, status string) ([]store.ContactMessage, error) {
	s.mu.Lock()
	items, err := s.read()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([]store.ContactMessage, 0, len(items))
	for _, msg := range items {
		if status == "" || msg.Status == status {
			out = append(out, msg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *KVStore) GetContactMessage(ctx context.Context, id string) (store.ContactMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := s.read()
	if err != nil {
		return store.ContactMessage{}, err
	}
	for _, msg := range items {
		if msg.ID == id {
			return msg, nil
		}
	}
	return store.ContactMessage{}, store.ErrNotFound
}

func (s *KVStore) UpdateContactMessageStatus(ctx context.Context, id, status string, at time.Time) (store.ContactMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := s.read()
	if err != nil {
		return store.ContactMessage{}, err
	}
	for i := range items {
		if items[i].ID != id {
			continue
		}
		items[i].Status = status
		switch status {
		case store.ContactStatusArchived:
			items[i].ArchivedAt = &at
		case store.ContactStatusDeleted:
			items[i].DeletedAt = &at
		}
		if err := s.write(items); err != nil {
			return store.ContactMessage{}, err
		}
		return items[i], nil
	}
	return store.ContactMessage{}, store.ErrNotFound
}
