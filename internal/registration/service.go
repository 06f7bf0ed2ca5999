// Package registration implements the conclave's subscribe, register, login,
// logout and password-reset operations on top of an external credential
// store, a profile store and an email dispatcher.
//
// Every operation is a straight pass-through: one round trip per
// collaborator, no retries, and every failure is mapped onto a Kind before it
// leaves the package.
package registration

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"smec/conclave/internal/model"
)

const (
	MessageRegistered    = "Registration successful! Please check your email to verify your account."
	MessageLoggedIn      = "Login successful"
	MessageLoggedOut     = "Logout successful"
	MessageEmailSent     = "Email sent successfully"
	MessageResetSent     = "Password reset email sent"
	MessageResetComplete = "Password updated successfully"
)

// compensationTimeout bounds the account delete after a failed profile
// insert. The delete runs detached from the request so a client that hangs up
// mid-insert does not cancel it too.
const compensationTimeout = 10 * time.Second

var compensationFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "conclave_register_compensation_failures_total",
	Help: "Accounts left without a profile because the compensating delete failed.",
})

type AccountStore interface {
	CreateAccount(ctx context.Context, account model.NewAccount) (model.Account, error)
	DeleteAccount(ctx context.Context, accountID string) error
	SignIn(ctx context.Context, email, password string) (model.Session, model.Account, error)
	SignOut(ctx context.Context, accessToken string) error
	SendPasswordReset(ctx context.Context, email, redirectTo string) error
}

// PasswordResetCompleter is implemented by credential stores that own the
// reset flow end to end instead of handing it to a hosted page.
type PasswordResetCompleter interface {
	CompletePasswordReset(ctx context.Context, token, newPassword string) error
}

type ProfileStore interface {
	InsertProfile(ctx context.Context, profile model.Profile) error
	GetProfile(ctx context.Context, accountID string) (model.Profile, error)
}

type Dispatcher interface {
	SendBrochure(ctx context.Context, to string) error
}

type Options struct {
	ResetRedirectURL string
}

type Service struct {
	accounts   AccountStore
	profiles   ProfileStore
	dispatcher Dispatcher
	opts       Options
}

func NewService(accounts AccountStore, profiles ProfileStore, dispatcher Dispatcher, opts Options) *Service {
	return &Service{accounts: accounts, profiles: profiles, dispatcher: dispatcher, opts: opts}
}

type RegisterResult struct {
	Message                   string `json:"message"`
	RequiresEmailVerification bool   `json:"requiresEmailVerification"`
}

type LoginResult struct {
	Message string        `json:"message"`
	Session model.Session `json:"session"`
	User    UserView      `json:"user"`
}

// UserView mirrors a user_profiles row. When the profile cannot be read only
// Email is set.
type UserView struct {
	ID          string     `json:"id,omitempty"`
	FullName    string     `json:"full_name,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	Email       string     `json:"email"`
	Gender      string     `json:"gender,omitempty"`
	DateOfBirth string     `json:"date_of_birth,omitempty"`
	Profession  string     `json:"profession,omitempty"`
	CollegeName *string    `json:"college_name,omitempty"`
	CompanyName *string    `json:"company_name,omitempty"`
	Country     string     `json:"country,omitempty"`
	State       string     `json:"state,omitempty"`
	Pincode     string     `json:"pincode,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
}

func NewUserView(p model.Profile) UserView {
	view := UserView{
		ID:          p.ID,
		FullName:    p.FullName,
		Phone:       p.Phone,
		Email:       p.Email,
		Gender:      p.Gender,
		DateOfBirth: p.DateOfBirth,
		Country:     p.Country,
		State:       p.State,
		Pincode:     p.Pincode,
	}
	if p.Profession != nil {
		view.Profession = string(p.Profession.Category())
		view.CollegeName = model.CollegeName(p.Profession)
		view.CompanyName = model.CompanyName(p.Profession)
	}
	if !p.CreatedAt.IsZero() {
		createdAt := p.CreatedAt
		view.CreatedAt = &createdAt
	}
	return view
}

func (s *Service) Subscribe(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", invalid("email", "Email is required")
	}
	if err := s.dispatcher.SendBrochure(ctx, email); err != nil {
		log.Printf("brochure email to %s failed: %v", email, err)
		return "", failure(KindDispatch, "Failed to send email", err)
	}
	log.Printf("brochure email sent to %s", email)
	return MessageEmailSent, nil
}

// Register creates the account and then the profile. If the profile insert
// fails the account is deleted again; when that delete also fails the account
// is left without a profile and only logged.
func (s *Service) Register(ctx context.Context, req Request) (RegisterResult, error) {
	reg, err := req.Validate()
	if err != nil {
		return RegisterResult{}, err
	}

	account, err := s.accounts.CreateAccount(ctx, model.NewAccount{
		Email:          reg.Email,
		Password:       reg.Password,
		FullName:       reg.FullName,
		EmailConfirmed: true,
	})
	if err != nil {
		log.Printf("account creation for %s failed: %v", reg.Email, err)
		if errors.Is(err, model.ErrAccountExists) {
			return RegisterResult{}, failure(KindDuplicate, "Email already registered", err)
		}
		return RegisterResult{}, failure(KindAccountCreation, "Failed to create account", err)
	}

	if err := s.profiles.InsertProfile(ctx, reg.profile(account.ID)); err != nil {
		log.Printf("profile creation for %s failed: %v", account.ID, err)
		delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
		delErr := s.accounts.DeleteAccount(delCtx, account.ID)
		cancel()
		if delErr != nil {
			compensationFailures.Inc()
			log.Printf("compensating delete of account %s failed, account left without profile: %v", account.ID, delErr)
		}
		return RegisterResult{}, failure(KindProfileCreation, "Failed to create user profile", err)
	}

	log.Printf("registration successful: %s", reg.Email)
	return RegisterResult{Message: MessageRegistered, RequiresEmailVerification: false}, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return LoginResult{}, invalid("email", "Email and password are required")
	}

	session, account, err := s.accounts.SignIn(ctx, email, password)
	if err != nil {
		log.Printf("login for %s failed: %v", email, err)
		if errors.Is(err, model.ErrEmailNotConfirmed) {
			return LoginResult{}, failure(KindUnverifiedEmail, "Please verify your email before logging in", err)
		}
		return LoginResult{}, failure(KindInvalidCreds, "Invalid credentials", err)
	}

	user := UserView{Email: account.Email}
	profile, err := s.profiles.GetProfile(ctx, account.ID)
	if err != nil {
		log.Printf("profile fetch for %s failed: %v", account.ID, err)
	} else {
		user = NewUserView(profile)
	}

	log.Printf("login successful: %s", email)
	return LoginResult{Message: MessageLoggedIn, Session: session, User: user}, nil
}

func (s *Service) Logout(ctx context.Context, accessToken string) (string, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return "", invalid("accessToken", "Access token is required")
	}
	if err := s.accounts.SignOut(ctx, accessToken); err != nil {
		log.Printf("logout failed: %v", err)
		return "", failure(KindLogout, "Logout failed", err)
	}
	return MessageLoggedOut, nil
}

// RequestPasswordReset answers the same way whether or not the email belongs
// to an account; that distinction stays inside the credential store.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", invalid("email", "Email is required")
	}
	if err := s.accounts.SendPasswordReset(ctx, email, s.opts.ResetRedirectURL); err != nil {
		log.Printf("password reset request failed: %v", err)
		return "", failure(KindResetDispatch, "Failed to send reset email", err)
	}
	return MessageResetSent, nil
}

func (s *Service) CompletePasswordReset(ctx context.Context, token, newPassword string) (string, error) {
	completer, ok := s.accounts.(PasswordResetCompleter)
	if !ok {
		return "", ErrResetUnsupported
	}
	token = strings.TrimSpace(token)
	if token == "" || newPassword == "" {
		return "", invalid("token", "Token and password are required")
	}
	if err := completer.CompletePasswordReset(ctx, token, newPassword); err != nil {
		if errors.Is(err, model.ErrInvalidResetToken) {
			return "", &Error{Kind: KindValidation, Field: "token", Message: "Reset link is invalid or has expired", Err: err}
		}
		log.Printf("password reset completion failed: %v", err)
		return "", failure(KindResetDispatch, "Failed to reset password", err)
	}
	return MessageResetComplete, nil
}
