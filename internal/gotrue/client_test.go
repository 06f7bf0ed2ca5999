package gotrue

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"smec/conclave/internal/model"
)

const serviceKey = "service-role-key"

type fakeGoTrue struct {
	users       map[string]string
	confirmed   map[string]bool
	deleted     []string
	recoverTo   string
	logoutToken string
}

func (f *fakeGoTrue) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	requireService := func(w http.ResponseWriter, r *http.Request) bool {
		if r.Header.Get("apikey") != serviceKey || r.Header.Get("Authorization") != "Bearer "+serviceKey {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"msg": "bad key"})
			return false
		}
		return true
	}

	mux.HandleFunc("/auth/v1/admin/users", func(w http.ResponseWriter, r *http.Request) {
		if !requireService(w, r) {
			return
		}
		var req createUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode create: %v", err)
		}
		if _, ok := f.users[req.Email]; ok {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"code":       422,
				"error_code": "email_exists",
				"msg":        "A user with this email address has already been registered",
			})
			return
		}
		if req.UserMetadata["full_name"] == nil {
			t.Errorf("expected full_name metadata")
		}
		f.users[req.Email] = req.Password
		f.confirmed[req.Email] = req.EmailConfirm
		writeJSON(w, http.StatusOK, map[string]any{
			"id":                 "uid-" + req.Email,
			"email":              req.Email,
			"email_confirmed_at": "2026-01-01T00:00:00Z",
		})
	})
	mux.HandleFunc("/auth/v1/admin/users/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || !requireService(w, r) {
			return
		}
		f.deleted = append(f.deleted, r.URL.Path[len("/auth/v1/admin/users/"):])
		writeJSON(w, http.StatusOK, map[string]any{})
	})
	mux.HandleFunc("/auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("grant_type") != "password" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unsupported_grant_type"})
			return
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		password, ok := f.users[body["email"]]
		if !ok || password != body["password"] {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_grant", "error_description": "Invalid login credentials"})
			return
		}
		if !f.confirmed[body["email"]] {
			writeJSON(w, http.StatusBadRequest, map[string]any{"code": 400, "error_code": "email_not_confirmed", "msg": "Email not confirmed"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  "jwt-" + body["email"],
			"token_type":    "bearer",
			"expires_in":    3600,
			"expires_at":    1893456000,
			"refresh_token": "refresh",
			"user":          map[string]any{"id": "uid-" + body["email"], "email": body["email"], "email_confirmed_at": "2026-01-01T00:00:00Z"},
		})
	})
	mux.HandleFunc("/auth/v1/logout", func(w http.ResponseWriter, r *http.Request) {
		f.logoutToken = r.Header.Get("Authorization")
		if r.Header.Get("Authorization") == "Bearer expired" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"msg": "invalid JWT"})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/auth/v1/recover", func(w http.ResponseWriter, r *http.Request) {
		if !requireService(w, r) {
			return
		}
		f.recoverTo = r.URL.Query().Get("redirect_to")
		writeJSON(w, http.StatusOK, map[string]any{})
	})
	return mux
}

func newTestClient(t *testing.T) (*Client, *fakeGoTrue) {
	fake := &fakeGoTrue{users: map[string]string{}, confirmed: map[string]bool{}}
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", serviceKey, srv.Client()), fake
}

func TestCreateAndDeleteAccount(t *testing.T) {
	client, fake := newTestClient(t)
	ctx := context.Background()

	account, err := client.CreateAccount(ctx, model.NewAccount{Email: "asha@example.com", Password: "pw", FullName: "Asha", EmailConfirmed: true})
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	if account.ID != "uid-asha@example.com" || !account.EmailConfirmed {
		t.Fatalf("unexpected account %+v", account)
	}

	_, err = client.CreateAccount(ctx, model.NewAccount{Email: "asha@example.com", Password: "pw", FullName: "Asha"})
	if !errors.Is(err, model.ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}

	if err := client.DeleteAccount(ctx, account.ID); err != nil {
		t.Fatalf("delete error: %v", err)
	}
	if len(fake.deleted) != 1 || fake.deleted[0] != account.ID {
		t.Fatalf("expected delete of %s, got %v", account.ID, fake.deleted)
	}
}

func TestSignIn(t *testing.T) {
	client, fake := newTestClient(t)
	ctx := context.Background()
	fake.users["asha@example.com"] = "pw"
	fake.confirmed["asha@example.com"] = true
	fake.users["new@example.com"] = "pw"

	sess, account, err := client.SignIn(ctx, "asha@example.com", "pw")
	if err != nil {
		t.Fatalf("sign in error: %v", err)
	}
	if sess.AccessToken != "jwt-asha@example.com" || sess.ExpiresIn != 3600 || sess.UserID != account.ID {
		t.Fatalf("unexpected session %+v", sess)
	}

	if _, _, err := client.SignIn(ctx, "asha@example.com", "wrong"); !errors.Is(err, model.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, _, err := client.SignIn(ctx, "new@example.com", "pw"); !errors.Is(err, model.ErrEmailNotConfirmed) {
		t.Fatalf("expected email not confirmed, got %v", err)
	}
}

func TestSignOutAndRecover(t *testing.T) {
	client, fake := newTestClient(t)
	ctx := context.Background()

	if err := client.SignOut(ctx, "user-jwt"); err != nil {
		t.Fatalf("sign out error: %v", err)
	}
	if fake.logoutToken != "Bearer user-jwt" {
		t.Fatalf("expected user token forwarded, got %q", fake.logoutToken)
	}
	var apiErr *APIError
	if err := client.SignOut(ctx, "expired"); !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 api error, got %v", err)
	}

	if err := client.SendPasswordReset(ctx, "asha@example.com", "http://localhost:5173/reset-password"); err != nil {
		t.Fatalf("recover error: %v", err)
	}
	if fake.recoverTo != "http://localhost:5173/reset-password" {
		t.Fatalf("expected redirect forwarded, got %q", fake.recoverTo)
	}
}

func TestUnreachableServer(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	client := New(srv.URL, serviceKey, nil)
	srv.Close()

	_, _, err := client.SignIn(context.Background(), "a@example.com", "pw")
	if err == nil || errors.Is(err, model.ErrInvalidCredentials) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestSignInFollowsRequestContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, _, err := New(srv.URL, serviceKey, nil).SignIn(ctx, "a@example.com", "pw")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected the caller's deadline to end the call, got %v", err)
	}
}
