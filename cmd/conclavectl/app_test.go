package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"smec/conclave/internal/catalog"
	"smec/conclave/internal/model"
	"smec/conclave/internal/registration"
)

type stubAPI struct {
	mu        sync.Mutex
	registers []registration.Request
}

func (s *stubAPI) server(t *testing.T) *httptest.Server {
	t.Helper()
	passes := catalog.Default()
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	mux.HandleFunc("/register", func(w http.ResponseWriter, r *http.Request) {
		var req registration.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		s.mu.Lock()
		s.registers = append(s.registers, req)
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, registration.RegisterResult{Message: registration.MessageRegistered})
	})
	mux.HandleFunc("/passes/", func(w http.ResponseWriter, r *http.Request) {
		category := model.Category(strings.TrimPrefix(r.URL.Path, "/passes/"))
		writeJSON(w, http.StatusOK, map[string]any{"category": category, "passes": passes.Display(category)})
	})
	mux.HandleFunc("/send-email", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to send email", "code": "dispatch_failure"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func runCLI(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader(input))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func detailLines(password, confirm string) []string {
	return []string{
		"Asha Rao", "9876543210", "asha@example.com", password, confirm,
		"female", "2003-04-12", "India", "Telangana", "500001", "SMEC",
	}
}

func TestRegisterCommand(t *testing.T) {
	api := &stubAPI{}
	srv := api.server(t)

	lines := []string{"professional", "back", "student", "full"}
	lines = append(lines, detailLines("a", "b")...)
	lines = append(lines, "yes")
	lines = append(lines, detailLines("s3cret!", "s3cret!")...)
	lines = append(lines, "yes")

	out, err := runCLI(t, strings.Join(lines, "\n")+"\n", "--api-url", srv.URL, "register")
	if err != nil {
		t.Fatalf("register failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Passwords do not match!") {
		t.Fatalf("expected mismatch message, got:\n%s", out)
	}
	if !strings.Contains(out, registration.MessageRegistered) || !strings.Contains(out, "Pass: Conclave Pass") {
		t.Fatalf("expected success summary, got:\n%s", out)
	}
	if len(api.registers) != 1 {
		t.Fatalf("expected exactly one register call, got %d", len(api.registers))
	}
	req := api.registers[0]
	if req.Profession != "student" || req.CollegeName != "SMEC" || req.CompanyName != "" || req.Password != "s3cret!" {
		t.Fatalf("unexpected register request %+v", req)
	}
}

func TestRegisterCommandStopsOnEOF(t *testing.T) {
	api := &stubAPI{}
	srv := api.server(t)
	if _, err := runCLI(t, "student\n", "--api-url", srv.URL, "register"); err == nil {
		t.Fatalf("expected error when input ends early")
	}
	if len(api.registers) != 0 {
		t.Fatalf("expected no register call")
	}
}

func TestPassesCommand(t *testing.T) {
	srv := (&stubAPI{}).server(t)
	out, err := runCLI(t, "", "--api-url", srv.URL, "passes", "professional")
	if err != nil {
		t.Fatalf("passes failed: %v", err)
	}
	if !strings.HasPrefix(out, "professional:\n  [full]") || !strings.Contains(out, "(recommended)") {
		t.Fatalf("expected recommended pass listed first, got:\n%s", out)
	}

	if _, err := runCLI(t, "", "--api-url", srv.URL, "passes", "sponsor"); err == nil {
		t.Fatalf("expected unknown category to fail")
	}
}

func TestSubscribeCommandShowsServerMessage(t *testing.T) {
	srv := (&stubAPI{}).server(t)
	_, err := runCLI(t, "", "--api-url", srv.URL, "subscribe", "fan@example.com")
	if err == nil || err.Error() != "Failed to send email" {
		t.Fatalf("expected server message, got %v", err)
	}
}
