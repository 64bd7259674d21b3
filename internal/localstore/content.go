package localstore

import (
	"context"
	"errors"
	"fmt"

	"authorsite/api/internal/content"

	"go.uber.org/zap"
)

// ContentKey is the key the content document is stored under.
const ContentKey = "admin-content"

const quotaMessage = "localStorage lleno. Las imágenes son muy grandes. Intenta comprimir las imágenes."

// ContentStore persists the whole content document as one value.
type ContentStore struct {
	kv     *KV
	logger *zap.Logger
}

func NewContentStore(kv *KV, logger *zap.Logger) *ContentStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContentStore{kv: kv, logger: logger}
}

// Load returns the stored document. A missing or unreadable document yields the
// defaults and false; only I/O failures are returned as errors.
func (s *ContentStore) Load(ctx context.Context) (content.Document, bool, error) {
	if err := ctx.Err(); err != nil {
		return content.Document{}, false, err
	}
	data, ok, err := s.kv.Get(ContentKey)
	if err != nil {
		return content.Document{}, false, err
	}
	if !ok {
		return content.Defaults(), false, nil
	}
	doc, err := content.Decode(data)
	if err != nil {
		s.logger.Warn("stored content is unreadable, using defaults", zap.Error(err))
		return content.Defaults(), false, nil
	}
	return doc, true, nil
}

// Save writes doc. Oversized documents are rejected before anything is written.
func (s *ContentStore) Save(ctx context.Context, doc content.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := content.Encode(doc)
	if err != nil {
		return err
	}
	if err := content.CheckSize(len(data)); err != nil {
		return err
	}
	if err := s.kv.Set(ContentKey, data); err != nil {
		if errors.Is(err, ErrQuotaExceeded) {
			return &content.StorageError{Message: quotaMessage, Err: err}
		}
		return &content.StorageError{Message: "Error al guardar el contenido", Err: err}
	}
	return nil
}

// Reset forgets the stored document so the next Load returns the defaults.
func (s *ContentStore) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.kv.Remove(ContentKey); err != nil {
		return fmt.Errorf("reset content: %w", err)
	}
	return nil
}
