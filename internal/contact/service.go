// Package contact accepts messages from the public contact form and lets the
// administrator triage them. Messages are never removed; deleting one leaves a
// tombstone.
package contact

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"authorsite/api/internal/email"
	"authorsite/api/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrNotFound          = errors.New("Mensaje no encontrado")
	ErrInvalidStatus     = errors.New("Estado no válido")
	ErrInvalidTransition = errors.New("Cambio de estado no permitido")
)

// Store persists contact messages. ListContactMessages returns them newest first.
type Store interface {
	InsertContactMessage(ctx context.Context, msg store.ContactMessage) error
	ListContactMessages(ctx context.Context, status string) ([]store.ContactMessage, error)
	GetContactMessage(ctx context.Context, id string) (store.ContactMessage, error)
	UpdateContactMessageStatus(ctx context.Context, id, status string, at time.Time) (store.ContactMessage, error)
}

type Notifier interface {
	IsConfigured() bool
	SendContactNotification(to string, data email.ContactNotification) error
}

type Service struct {
	store    Store
	logger   *zap.Logger
	notifier Notifier
	notifyTo string
	now      func() time.Time

	pending sync.WaitGroup
}

func NewService(s Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: s, logger: logger, now: time.Now}
}

// WithNotifier makes Submit email every new message to the address to.
func (s *Service) WithNotifier(n Notifier, to string) *Service {
	if n != nil && n.IsConfigured() && to != "" {
		s.notifier = n
		s.notifyTo = to
	}
	return s
}

// Submit validates and stores a new message.
func (s *Service) Submit(ctx context.Context, in Input) (store.ContactMessage, error) {
	if problems := Validate(in); len(problems) > 0 {
		return store.ContactMessage{}, &ValidationError{Problems: problems}
	}

	msg := store.ContactMessage{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(in.Name.(string)),
		Email:     strings.ToLower(strings.TrimSpace(in.Email.(string))),
		Message:   strings.TrimSpace(in.Message.(string)),
		Status:    store.ContactStatusNew,
		CreatedAt: s.now().UTC(),
	}
	if phone, ok := in.Phone.(string); ok && strings.TrimSpace(phone) != "" {
		trimmed := strings.TrimSpace(phone)
		msg.Phone = &trimmed
	}

	if err := s.store.InsertContactMessage(ctx, msg); err != nil {
		return store.ContactMessage{}, fmt.Errorf("save contact message: %w", err)
	}
	s.logger.Info("contact message received", zap.String("id", msg.ID))
	s.notify(msg)
	return msg, nil
}

func (s *Service) notify(msg store.ContactMessage) {
	if s.notifier == nil {
		return
	}
	data := email.ContactNotification{
		Name:       msg.Name,
		Email:      msg.Email,
		Message:    msg.Message,
		ReceivedAt: msg.CreatedAt,
	}
	if msg.Phone != nil {
		data.Phone = *msg.Phone
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.notifier.SendContactNotification(s.notifyTo, data); err != nil {
			s.logger.Warn("send contact notification", zap.String("id", msg.ID), zap.Error(err))
		}
	}()
}

// Wait blocks until every notification started by Submit has finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

// List returns messages newest first, optionally only those with status.
func (s *Service) List(ctx context.Context, status string) ([]store.ContactMessage, error) {
	if status != "" && !validStatus(status) {
		return nil, ErrInvalidStatus
	}
	items, err := s.store.ListContactMessages(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("list contact messages: %w", err)
	}
	return items, nil
}

// Get returns one message. Ids are UUIDs; anything else cannot exist.
func (s *Service) Get(ctx context.Context, id string) (store.ContactMessage, error) {
	if _, err := uuid.Parse(id); err != nil {
		return store.ContactMessage{}, ErrNotFound
	}
	msg, err := s.store.GetContactMessage(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return store.ContactMessage{}, ErrNotFound
	}
	return msg, err
}

func (s *Service) MarkRead(ctx context.Context, id string) (store.ContactMessage, error) {
	return s.UpdateStatus(ctx, id, store.ContactStatusRead)
}

func (s *Service) Archive(ctx context.Context, id string) (store.ContactMessage, error) {
	return s.UpdateStatus(ctx, id, store.ContactStatusArchived)
}

// Delete turns the message into a tombstone.
func (s *Service) Delete(ctx context.Context, id string) (store.ContactMessage, error) {
	return s.UpdateStatus(ctx, id, store.ContactStatusDeleted)
}

// UpdateStatus moves a message to status. Setting the current status again is a no-op.
func (s *Service) UpdateStatus(ctx context.Context, id, status string) (store.ContactMessage, error) {
	if !validStatus(status) {
		return store.ContactMessage{}, ErrInvalidStatus
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return store.ContactMessage{}, err
	}
	if current.Status == status {
		return current, nil
	}
	if !CanTransition(current.Status, status) {
		return store.ContactMessage{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, status)
	}
	updated, err := s.store.UpdateContactMessageStatus(ctx, id, status, s.now().UTC())
	if errors.Is(err, store.ErrNotFound) {
		return store.ContactMessage{}, ErrNotFound
	}
	if err != nil {
		return store.ContactMessage{}, fmt.Errorf("update contact message: %w", err)
	}
	s.logger.Info("contact message status changed", zap.String("id", id), zap.String("from", current.Status), zap.String("to", status))
	return updated, nil
}

var transitions = map[string][]string{
	store.ContactStatusNew:      {store.ContactStatusRead, store.ContactStatusArchived, store.ContactStatusDeleted},
	store.ContactStatusRead:     {store.ContactStatusArchived, store.ContactStatusDeleted},
	store.ContactStatusArchived: {store.ContactStatusDeleted},
}

// CanTransition reports whether a message may move from one status to another.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func validStatus(status string) bool {
	switch status {
	case store.ContactStatusNew, store.ContactStatusRead, store.ContactStatusArchived, store.ContactStatusDeleted:
		return true
	}
	return false
}
