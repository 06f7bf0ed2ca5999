package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"smec/conclave/internal/model"
)

const uniqueViolation = "23505"

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) InsertProfile(ctx context.Context, profile model.Profile) error {
	if profile.Profession == nil {
		return errors.New("profile without profession")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_profiles (id, full_name, phone, email, gender, date_of_birth, profession, college_name, company_name, country, state, pincode)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		profile.ID,
		profile.FullName,
		profile.Phone,
		profile.Email,
		profile.Gender,
		profile.DateOfBirth,
		string(profile.Profession.Category()),
		model.CollegeName(profile.Profession),
		model.CompanyName(profile.Profession),
		profile.Country,
		profile.State,
		profile.Pincode,
	)
	return err
}

func (s *Store) GetProfile(ctx context.Context, accountID string) (model.Profile, error) {
	var (
		profile    model.Profile
		profession string
		college    *string
		company    *string
	)
	row := s.pool.QueryRow(ctx, `
		SELECT id::text, full_name, phone, email, gender, date_of_birth::text, profession, college_name, company_name, country, state, pincode, created_at
		FROM user_profiles
		WHERE id = $1
	`, accountID)
	err := row.Scan(
		&profile.ID,
		&profile.FullName,
		&profile.Phone,
		&profile.Email,
		&profile.Gender,
		&profile.DateOfBirth,
		&profession,
		&college,
		&company,
		&profile.Country,
		&profile.State,
		&profile.Pincode,
		&profile.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Profile{}, model.ErrProfileNotFound
	}
	if err != nil {
		return model.Profile{}, err
	}
	profile.Profession, err = model.ProfessionFromColumns(profession, college, company)
	if err != nil {
		return model.Profile{}, fmt.Errorf("profile %s: %w", accountID, err)
	}
	return profile, nil
}

// AccountRecord is a row of the local backend's accounts table.
type AccountRecord struct {
	ID             string
	Email          string
	PasswordHash   string
	FullName       string
	EmailConfirmed bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (s *Store) CreateAccount(ctx context.Context, account AccountRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO accounts (id, email, password_hash, full_name, email_confirmed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, account.ID, account.Email, account.PasswordHash, account.FullName, account.EmailConfirmed, account.CreatedAt, account.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return model.ErrAccountExists
	}
	return err
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (AccountRecord, error) {
	var account AccountRecord
	row := s.pool.QueryRow(ctx, `
		SELECT id::text, email, password_hash, full_name, email_confirmed, created_at, updated_at
		FROM accounts
		WHERE email = $1
	`, email)
	err := row.Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
		&account.FullName,
		&account.EmailConfirmed,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	return account, err
}

func (s *Store) DeleteAccount(ctx context.Context, accountID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, accountID)
	return err
}

func (s *Store) UpdatePasswordHash(ctx context.Context, accountID, hash string, updatedAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE accounts
		SET password_hash = $1, updated_at = $2
		WHERE id = $3
	`, hash, updatedAt, accountID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
