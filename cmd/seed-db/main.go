package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/storage/postgres"
)

func main() {
	var (
		databaseURL   string
		catalogFile   string
		seedUser      string
		sessionPepper string
		sessionTTL    time.Duration
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogFile, "catalog-file", "db/seed/catalog.json", "path to catalog JSON file, optionally gzipped (.gz)")
	flag.StringVar(&seedUser, "user", "", "issue a session token for this user id (or SHOP_SEED_USER env)")
	flag.StringVar(&sessionPepper, "session-pepper", "", "HMAC pepper for session token hashing (or SHOP_SESSION_PEPPER env)")
	flag.DurationVar(&sessionTTL, "session-ttl", 30*24*time.Hour, "lifetime of the issued session, 0 for none")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if seedUser == "" {
		seedUser = os.Getenv("SHOP_SEED_USER")
	}
	if sessionPepper == "" {
		sessionPepper = os.Getenv("SHOP_SESSION_PEPPER")
	}
	if seedUser != "" && sessionPepper == "" {
		slog.Error("session pepper is required to issue a session: set --session-pepper or SHOP_SESSION_PEPPER")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, catalogFile, seedUser, sessionPepper, sessionTTL); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, catalogFile, seedUser, pepper string, ttl time.Duration) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	slog.Info("reading catalog file", slog.String("path", catalogFile))

	c, err := readCatalogFile(catalogFile)
	if err != nil {
		return errors.Wrap(err, "read catalog")
	}

	slog.Info("upserting catalog",
		slog.Int("brands", len(c.Brands)),
		slog.Int("products", len(c.Products)),
	)
	if err := postgres.NewProductRepository(pool).Upsert(ctx, c.Brands, c.Products); err != nil {
		return errors.Wrap(err, "seed catalog")
	}

	if seedUser == "" {
		return nil
	}

	authenticator := auth.NewAuthenticator(postgres.NewSessionRepository(pool), auth.NewHasher([]byte(pepper)))
	token, s, err := authenticator.Issue(ctx, seedUser, ttl)
	if err != nil {
		return errors.Wrap(err, "issue session")
	}

	// The token is only ever shown here; the database keeps its hash.
	slog.Info("issued session",
		slog.String("user_id", seedUser),
		slog.String("session_id", s.ID),
		slog.String("token", token),
	)
	return nil
}
