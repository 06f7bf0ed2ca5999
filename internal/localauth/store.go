// Package localauth is a self-hosted credential store: accounts live in
// Postgres, sessions and reset tokens in redis, access tokens are HS256 JWTs.
// It satisfies the same contract as the hosted Supabase backend so the
// service can run without an external identity provider.
package localauth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"smec/conclave/internal/auth"
	"smec/conclave/internal/crypto"
	"smec/conclave/internal/model"
	"smec/conclave/internal/repository"
	"smec/conclave/internal/session"
)

var errSessionEnded = errors.New("session already ended")

// dummyHash is compared against when the email is unknown, so that answer
// costs the same bcrypt work as a wrong password.
var dummyHash = sync.OnceValue(func() string {
	hash, err := crypto.HashPassword("conclave-unknown-account")
	if err != nil {
		panic(fmt.Sprintf("dummy password hash: %v", err))
	}
	return hash
})

type AccountRepository interface {
	CreateAccount(ctx context.Context, account repository.AccountRecord) error
	GetAccountByEmail(ctx context.Context, email string) (repository.AccountRecord, error)
	DeleteAccount(ctx context.Context, accountID string) error
	UpdatePasswordHash(ctx context.Context, accountID, hash string, updatedAt time.Time) error
}

type ResetMailer interface {
	SendPasswordReset(ctx context.Context, to, link string) error
}

type Config struct {
	JWTSecret      string
	JWTIssuer      string
	AccessTokenTTL time.Duration
	ResetTokenTTL  time.Duration
}

type Store struct {
	cfg      Config
	accounts AccountRepository
	sessions *session.Store
	mailer   ResetMailer
	now      func() time.Time
	check    func(hash, password string) error
}

func NewStore(cfg Config, accounts AccountRepository, sessions *session.Store, mailer ResetMailer) *Store {
	return &Store{cfg: cfg, accounts: accounts, sessions: sessions, mailer: mailer, now: time.Now, check: crypto.CheckPassword}
}

func (s *Store) CreateAccount(ctx context.Context, account model.NewAccount) (model.Account, error) {
	hash, err := crypto.HashPassword(account.Password)
	if err != nil {
		return model.Account{}, fmt.Errorf("hash password: %w", err)
	}
	now := s.now().UTC()
	record := repository.AccountRecord{
		ID:             uuid.NewString(),
		Email:          account.Email,
		PasswordHash:   hash,
		FullName:       account.FullName,
		EmailConfirmed: account.EmailConfirmed,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.accounts.CreateAccount(ctx, record); err != nil {
		return model.Account{}, err
	}
	return model.Account{ID: record.ID, Email: record.Email, EmailConfirmed: record.EmailConfirmed, CreatedAt: now}, nil
}

func (s *Store) DeleteAccount(ctx context.Context, accountID string) error {
	return s.accounts.DeleteAccount(ctx, accountID)
}

// SignIn checks the password before the confirmation flag so an unconfirmed
// answer is only given to someone who knows the password.
func (s *Store) SignIn(ctx context.Context, email, password string) (model.Session, model.Account, error) {
	record, err := s.accounts.GetAccountByEmail(ctx, email)
	if errors.Is(err, pgx.ErrNoRows) {
		_ = s.check(dummyHash(), password)
		return model.Session{}, model.Account{}, model.ErrInvalidCredentials
	}
	if err != nil {
		return model.Session{}, model.Account{}, err
	}
	if err := s.check(record.PasswordHash, password); err != nil {
		return model.Session{}, model.Account{}, model.ErrInvalidCredentials
	}
	if !record.EmailConfirmed {
		return model.Session{}, model.Account{}, model.ErrEmailNotConfirmed
	}

	sessionID := uuid.NewString()
	token, expiresAt, err := auth.NewAccessToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, sessionID, s.cfg.AccessTokenTTL, auth.Claims{
		AccountID: record.ID,
		Email:     record.Email,
	})
	if err != nil {
		return model.Session{}, model.Account{}, fmt.Errorf("sign token: %w", err)
	}
	if err := s.sessions.Open(ctx, sessionID, record.ID, s.cfg.AccessTokenTTL); err != nil {
		return model.Session{}, model.Account{}, err
	}

	sess := model.Session{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(s.cfg.AccessTokenTTL / time.Second),
		ExpiresAt:   expiresAt.Unix(),
		UserID:      record.ID,
	}
	account := model.Account{ID: record.ID, Email: record.Email, EmailConfirmed: true, CreatedAt: record.CreatedAt}
	return sess, account, nil
}

func (s *Store) SignOut(ctx context.Context, accessToken string) error {
	claims, err := auth.ParseToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, accessToken)
	if err != nil {
		return fmt.Errorf("parse token: %w", err)
	}
	revoked, err := s.sessions.Revoke(ctx, claims.ID)
	if err != nil {
		return err
	}
	if !revoked {
		return errSessionEnded
	}
	return nil
}

// SendPasswordReset returns nil for unknown emails.
func (s *Store) SendPasswordReset(ctx context.Context, email, redirectTo string) error {
	record, err := s.accounts.GetAccountByEmail(ctx, email)
	if errors.Is(err, pgx.ErrNoRows) {
		log.Printf("password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return err
	}
	token, err := s.sessions.IssueReset(ctx, record.ID, s.cfg.ResetTokenTTL)
	if err != nil {
		return err
	}
	link, err := resetLink(redirectTo, token)
	if err != nil {
		return err
	}
	return s.mailer.SendPasswordReset(ctx, record.Email, link)
}

func (s *Store) CompletePasswordReset(ctx context.Context, token, newPassword string) error {
	accountID, err := s.sessions.ConsumeReset(ctx, token)
	if err != nil {
		return err
	}
	hash, err := crypto.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	err = s.accounts.UpdatePasswordHash(ctx, accountID, hash, s.now().UTC())
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ErrInvalidResetToken
	}
	return err
}

func resetLink(redirectTo, token string) (string, error) {
	u, err := url.Parse(redirectTo)
	if err != nil {
		return "", fmt.Errorf("parse reset redirect: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
