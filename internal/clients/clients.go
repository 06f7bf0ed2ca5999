package clients

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"smec/conclave/internal/config"
	"smec/conclave/internal/db"
	"smec/conclave/internal/gotrue"
	"smec/conclave/internal/localauth"
	"smec/conclave/internal/mailer"
	"smec/conclave/internal/registration"
	"smec/conclave/internal/repository"
	"smec/conclave/internal/session"
)

// Clients is the collaborator set built once at start-up and injected into
// the registration service.
type Clients struct {
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Accounts registration.AccountStore
	Profiles *repository.Store
	Mailer   *mailer.Mailer
}

func New(ctx context.Context, cfg config.Config) (*Clients, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db connection failed: %w", err)
	}
	c := &Clients{Pool: pool, Profiles: repository.NewStore(pool)}

	if cfg.DBAutoMigrate && cfg.IdentityBackend == config.BackendLocal {
		if err := db.Migrate(ctx, pool); err != nil {
			c.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	if cfg.RedisAddr != "" {
		c.Redis, err = dialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			c.Close()
			return nil, err
		}
	}

	smtp, err := mailer.NewSMTPClient(mailerConfig(cfg))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	c.Mailer, err = mailer.New(mailerConfig(cfg), smtp)
	if err != nil {
		c.Close()
		return nil, err
	}

	c.Accounts = newAccountStore(cfg, c.Profiles, c.Redis, c.Mailer)
	log.Printf("identity backend: %s", cfg.IdentityBackend)
	return c, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			log.Printf("redis close error: %v", err)
		}
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
}

// newAccountStore picks the credential store. GoTrue calls carry no timeout of
// their own; the request context bounds them.
func newAccountStore(cfg config.Config, profiles *repository.Store, rdb *redis.Client, m *mailer.Mailer) registration.AccountStore {
	if cfg.IdentityBackend == config.BackendLocal {
		return localauth.NewStore(localauth.Config{
			JWTSecret:      cfg.JWTSecret,
			JWTIssuer:      cfg.JWTIssuer,
			AccessTokenTTL: cfg.AccessTokenTTL,
			ResetTokenTTL:  cfg.ResetTokenTTL,
		}, profiles, session.NewStore(rdb), m)
	}
	return gotrue.New(cfg.SupabaseURL, cfg.SupabaseServiceRoleKey, nil)
}

func mailerConfig(cfg config.Config) mailer.Config {
	return mailer.Config{
		Host:         cfg.SMTPHost,
		Port:         cfg.SMTPPort,
		Username:     cfg.EmailUser,
		Password:     cfg.EmailPass,
		FromName:     cfg.MailFromName,
		FromAddress:  cfg.EmailUser,
		BrochurePath: cfg.BrochurePath,
	}
}

func dialRedis(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}
