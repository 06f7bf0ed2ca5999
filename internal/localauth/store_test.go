package localauth

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"smec/conclave/internal/model"
	"smec/conclave/internal/repository"
	"smec/conclave/internal/session"
)

type memoryAccounts struct {
	mu   sync.Mutex
	rows map[string]repository.AccountRecord
}

func (m *memoryAccounts) CreateAccount(_ context.Context, account repository.AccountRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.Email == account.Email {
			return model.ErrAccountExists
		}
	}
	m.rows[account.ID] = account
	return nil
}

func (m *memoryAccounts) GetAccountByEmail(_ context.Context, email string) (repository.AccountRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.Email == email {
			return row, nil
		}
	}
	return repository.AccountRecord{}, pgx.ErrNoRows
}

func (m *memoryAccounts) DeleteAccount(_ context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, accountID)
	return nil
}

func (m *memoryAccounts) UpdatePasswordHash(_ context.Context, accountID, hash string, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[accountID]
	if !ok {
		return pgx.ErrNoRows
	}
	row.PasswordHash = hash
	row.UpdatedAt = updatedAt
	m.rows[accountID] = row
	return nil
}

type capturedReset struct {
	to   string
	link string
}

type recordingMailer struct {
	sent []capturedReset
}

func (r *recordingMailer) SendPasswordReset(_ context.Context, to, link string) error {
	r.sent = append(r.sent, capturedReset{to: to, link: link})
	return nil
}

func newTestStore(t *testing.T) (*Store, *memoryAccounts, *recordingMailer) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	accounts := &memoryAccounts{rows: map[string]repository.AccountRecord{}}
	mailer := &recordingMailer{}
	store := NewStore(Config{
		JWTSecret:      "test-secret",
		JWTIssuer:      "test-issuer",
		AccessTokenTTL: time.Hour,
		ResetTokenTTL:  time.Hour,
	}, accounts, session.NewStore(rdb), mailer)
	return store, accounts, mailer
}

func TestSignInAndOut(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	account, err := store.CreateAccount(ctx, model.NewAccount{Email: "asha@example.com", Password: "pw", EmailConfirmed: true})
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	if _, err := store.CreateAccount(ctx, model.NewAccount{Email: "asha@example.com", Password: "pw"}); !errors.Is(err, model.ErrAccountExists) {
		t.Fatalf("expected duplicate, got %v", err)
	}

	sess, signedIn, err := store.SignIn(ctx, "asha@example.com", "pw")
	if err != nil {
		t.Fatalf("sign in error: %v", err)
	}
	if sess.AccessToken == "" || sess.UserID != account.ID || signedIn.ID != account.ID {
		t.Fatalf("unexpected session %+v", sess)
	}
	if sess.ExpiresIn != 3600 {
		t.Fatalf("expected 3600s expiry, got %d", sess.ExpiresIn)
	}

	if _, _, err := store.SignIn(ctx, "asha@example.com", "wrong"); !errors.Is(err, model.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, _, err := store.SignIn(ctx, "nobody@example.com", "pw"); !errors.Is(err, model.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown email, got %v", err)
	}

	if err := store.SignOut(ctx, sess.AccessToken); err != nil {
		t.Fatalf("sign out error: %v", err)
	}
	if err := store.SignOut(ctx, sess.AccessToken); err == nil {
		t.Fatalf("expected second sign out to fail")
	}
	if err := store.SignOut(ctx, "not-a-jwt"); err == nil {
		t.Fatalf("expected garbage token to fail")
	}
}

func TestSignInUnknownEmailRunsPasswordCheck(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()
	if _, err := store.CreateAccount(ctx, model.NewAccount{Email: "asha@example.com", Password: "pw", EmailConfirmed: true}); err != nil {
		t.Fatalf("create error: %v", err)
	}

	var hashes []string
	check := store.check
	store.check = func(hash, password string) error {
		hashes = append(hashes, hash)
		return check(hash, password)
	}

	if _, _, err := store.SignIn(ctx, "nobody@example.com", "pw"); !errors.Is(err, model.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, _, err := store.SignIn(ctx, "asha@example.com", "wrong"); !errors.Is(err, model.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if len(hashes) != 2 {
		t.Fatalf("expected a bcrypt comparison for both unknown email and wrong password, got %d", len(hashes))
	}
	if hashes[0] != dummyHash() || hashes[0] == "" {
		t.Fatalf("expected unknown email compared against the stand-in hash")
	}
	if _, err := bcrypt.Cost([]byte(hashes[0])); err != nil {
		t.Fatalf("stand-in hash is not a bcrypt hash: %v", err)
	}
}

func TestSignInUnconfirmed(t *testing.T) {
	store, _, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := store.CreateAccount(ctx, model.NewAccount{Email: "new@example.com", Password: "pw"}); err != nil {
		t.Fatalf("create error: %v", err)
	}
	if _, _, err := store.SignIn(ctx, "new@example.com", "pw"); !errors.Is(err, model.ErrEmailNotConfirmed) {
		t.Fatalf("expected unconfirmed, got %v", err)
	}
	if _, _, err := store.SignIn(ctx, "new@example.com", "bad"); !errors.Is(err, model.ErrInvalidCredentials) {
		t.Fatalf("expected wrong password to win over unconfirmed, got %v", err)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	store, _, mailer := newTestStore(t)
	ctx := context.Background()

	if _, err := store.CreateAccount(ctx, model.NewAccount{Email: "asha@example.com", Password: "old", EmailConfirmed: true}); err != nil {
		t.Fatalf("create error: %v", err)
	}

	if err := store.SendPasswordReset(ctx, "nobody@example.com", "http://localhost:5173/reset-password"); err != nil {
		t.Fatalf("unknown email must not error: %v", err)
	}
	if len(mailer.sent) != 0 {
		t.Fatalf("expected no mail for unknown email")
	}

	if err := store.SendPasswordReset(ctx, "asha@example.com", "http://localhost:5173/reset-password"); err != nil {
		t.Fatalf("reset error: %v", err)
	}
	if len(mailer.sent) != 1 || mailer.sent[0].to != "asha@example.com" {
		t.Fatalf("expected one reset mail, got %+v", mailer.sent)
	}
	link, err := url.Parse(mailer.sent[0].link)
	if err != nil {
		t.Fatalf("bad link: %v", err)
	}
	if link.Path != "/reset-password" {
		t.Fatalf("unexpected link path %s", link.Path)
	}
	token := link.Query().Get("token")
	if token == "" {
		t.Fatalf("expected token in link")
	}

	if err := store.CompletePasswordReset(ctx, token, "new"); err != nil {
		t.Fatalf("complete error: %v", err)
	}
	if err := store.CompletePasswordReset(ctx, token, "again"); !errors.Is(err, model.ErrInvalidResetToken) {
		t.Fatalf("expected reused token to be rejected, got %v", err)
	}
	if _, _, err := store.SignIn(ctx, "asha@example.com", "old"); !errors.Is(err, model.ErrInvalidCredentials) {
		t.Fatalf("expected old password rejected")
	}
	if _, _, err := store.SignIn(ctx, "asha@example.com", "new"); err != nil {
		t.Fatalf("expected new password accepted: %v", err)
	}
}
