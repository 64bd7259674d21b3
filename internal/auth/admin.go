package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"authorsite/api/internal/session"
	"authorsite/api/internal/util"

	"golang.org/x/crypto/bcrypt"
)

// RoleAdmin is the only role; every valid token belongs to the site administrator.
const RoleAdmin = "admin"

var ErrInvalidCredentials = errors.New("Credenciales inválidas")

type AdminConfig struct {
	Username string
	// Password is hashed at startup when PasswordHash is empty.
	Password     string
	PasswordHash string
	Secret       string
	TTL          time.Duration
	// Cost is the bcrypt cost used to hash Password; zero means bcrypt.DefaultCost.
	Cost int
	// Sessions records open sessions; nil keeps them in memory.
	Sessions SessionStore
}

// SessionStore remembers which issued tokens are still open.
type SessionStore interface {
	Save(ctx context.Context, id, subject string, expiresAt time.Time) error
	Lookup(ctx context.Context, id string) (session.Record, error)
	Revoke(ctx context.Context, id string) error
}

type User struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

type Session struct {
	Token     string    `json:"token"`
	User      User      `json:"user"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Admin checks the administrator's credentials and the tokens issued to them.
type Admin struct {
	username string
	hash     []byte
	secret   []byte
	ttl      time.Duration
	sessions SessionStore
	now      func() time.Time
}

func NewAdmin(cfg AdminConfig) (*Admin, error) {
	if cfg.Username == "" {
		return nil, errors.New("admin username is required")
	}
	if cfg.Secret == "" {
		return nil, errors.New("token secret is required")
	}
	hash := []byte(cfg.PasswordHash)
	if len(hash) == 0 {
		if cfg.Password == "" {
			return nil, errors.New("admin password or password hash is required")
		}
		cost := cfg.Cost
		if cost == 0 {
			cost = bcrypt.DefaultCost
		}
		generated, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), cost)
		if err != nil {
			return nil, fmt.Errorf("hash admin password: %w", err)
		}
		hash = generated
	} else if _, err := bcrypt.Cost(hash); err != nil {
		return nil, fmt.Errorf("admin password hash: %w", err)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	sessions := cfg.Sessions
	if sessions == nil {
		sessions = session.NewMemoryStore()
	}
	return &Admin{username: cfg.Username, hash: hash, secret: []byte(cfg.Secret), ttl: ttl, sessions: sessions, now: time.Now}, nil
}

// Login returns a fresh session when username and password match.
func (a *Admin) Login(ctx context.Context, username, password string) (Session, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	passErr := bcrypt.CompareHashAndPassword(a.hash, []byte(password))
	if !userOK || passErr != nil {
		return Session{}, ErrInvalidCredentials
	}

	now := a.now()
	expires := now.Add(a.ttl)
	jti := util.NewID("jti")
	token, err := IssueToken(a.secret, Claims{
		Sub:  a.username,
		Role: RoleAdmin,
		JTI:  jti,
		Iat:  now.Unix(),
		Exp:  expires.Unix(),
	})
	if err != nil {
		return Session{}, err
	}
	if err := a.sessions.Save(ctx, jti, a.username, expires); err != nil {
		return Session{}, err
	}
	return Session{Token: token, User: User{Username: a.username, Role: RoleAdmin}, ExpiresAt: expires.UTC()}, nil
}

// Verify checks a token issued by Login and not yet logged out.
func (a *Admin) Verify(ctx context.Context, token string) (Claims, error) {
	claims, err := ParseToken(a.secret, token, a.now())
	if err != nil {
		return Claims{}, err
	}
	if claims.Role != RoleAdmin || claims.Sub != a.username {
		return Claims{}, ErrInvalidToken
	}
	if _, err := a.sessions.Lookup(ctx, claims.JTI); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return Claims{}, ErrRevokedToken
		}
		return Claims{}, err
	}
	return claims, nil
}

// Logout closes the session of a valid token.
func (a *Admin) Logout(ctx context.Context, token string) error {
	claims, err := a.Verify(ctx, token)
	if err != nil {
		return err
	}
	return a.sessions.Revoke(ctx, claims.JTI)
}
