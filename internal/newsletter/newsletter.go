// Package newsletter keeps the list of newsletter subscribers in the local data
// directory. The list is never synced to the database.
package newsletter

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"

	"authorsite/api/internal/localstore"
	"authorsite/api/internal/util"

	"go.uber.org/zap"
)

// SubscribersKey is the local store key of the subscriber list.
const SubscribersKey = "newsletter-subscribers"

const StatusActive = "active"

var (
	ErrEmailRequired     = errors.New("Por favor ingresa tu correo electrónico")
	ErrInvalidEmail      = errors.New("Por favor ingresa un correo electrónico válido")
	ErrAlreadySubscribed = errors.New("Este correo ya está suscrito")
	ErrNotFound          = errors.New("Suscriptor no encontrado")
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type Subscriber struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	SubscribedAt time.Time `json:"subscribedAt"`
	Status       string    `json:"status"`
}

type List struct {
	kv       *localstore.KV
	logger   *zap.Logger
	now      func() time.Time
	location *time.Location

	mu sync.Mutex
}

func NewList(kv *localstore.KV, logger *zap.Logger) *List {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &List{kv: kv, logger: logger, now: time.Now, location: time.Local}
}

func (l *List) read() ([]Subscriber, error) {
	data, ok, err := l.kv.Get(SubscribersKey)
	if err != nil || !ok {
		return []Subscriber{}, err
	}
	var subs []Subscriber
	if err := json.Unmarshal(data, &subs); err != nil {
		l.logger.Warn("stored subscriber list is unreadable, starting empty", zap.Error(err))
		return []Subscriber{}, nil
	}
	return subs, nil
}

func (l *List) write(subs []Subscriber) error {
	data, err := json.Marshal(subs)
	if err != nil {
		return fmt.Errorf("encode subscribers: %w", err)
	}
	return l.kv.Set(SubscribersKey, data)
}

// Subscribe adds address to the list. Addresses are compared case-insensitively.
func (l *List) Subscribe(ctx context.Context, address string) (Subscriber, error) {
	address = strings.ToLower(strings.TrimSpace(address))
	if address == "" {
		return Subscriber{}, ErrEmailRequired
	}
	if !emailPattern.MatchString(address) {
		return Subscriber{}, ErrInvalidEmail
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	subs, err := l.read()
	if err != nil {
		return Subscriber{}, err
	}
	for _, sub := range subs {
		if strings.EqualFold(sub.Email, address) {
			return Subscriber{}, ErrAlreadySubscribed
		}
	}

	sub := Subscriber{
		ID:           util.NewItemID(),
		Email:        address,
		SubscribedAt: l.now().UTC(),
		Status:       StatusActive,
	}
	if err := l.write(append(subs, sub)); err != nil {
		return Subscriber{}, fmt.Errorf("save subscriber: %w", err)
	}
	l.logger.Info("newsletter subscription", zap.Int64("id", sub.ID))
	return sub, nil
}

// Subscribers returns the list in subscription order.
func (l *List) Subscribers(ctx context.Context) ([]Subscriber, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read()
}

func (l *List) Remove(ctx context.Context, id int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	subs, err := l.read()
	if err != nil {
		return err
	}
	kept := subs[:0]
	for _, sub := range subs {
		if sub.ID != id {
			kept = append(kept, sub)
		}
	}
	if len(kept) == len(subs) {
		return ErrNotFound
	}
	return l.write(kept)
}

// ExportCSV writes the list with the admin panel's columns and returns the number of
// subscribers written.
func (l *List) ExportCSV(ctx context.Context, w io.Writer) (int, error) {
	subs, err := l.Subscribers(ctx)
	if err != nil {
		return 0, err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Email", "Fecha de suscripción", "Estado"}); err != nil {
		return 0, err
	}
	for _, sub := range subs {
		state := "Inactivo"
		if sub.Status == StatusActive {
			state = "Activo"
		}
		if err := cw.Write([]string{sub.Email, sub.SubscribedAt.In(l.location).Format("2/1/2006"), state}); err != nil {
			return 0, err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("write csv: %w", err)
	}
	return len(subs), nil
}

// ExportFilename names an export made at now.
func ExportFilename(now time.Time) string {
	return fmt.Sprintf("suscriptores_newsletter_%s.csv", now.UTC().Format("2006-01-02"))
}
