//go:build integration

package repositories

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/BradenHooton/kafedra/internal/database"
	"github.com/BradenHooton/kafedra/internal/models"
	"github.com/BradenHooton/kafedra/pkg/auth"
)

// testDB manages a PostgreSQL testcontainer with migrations applied
type testDB struct {
	container testcontainers.Container
	db        *database.DB
}

func setupTestDatabase(t *testing.T) *testDB {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("kafedra"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "start postgres container")

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	require.NoError(t, pool.Ping(ctx))

	migrator, err := database.NewMigrator(stdlib.OpenDB(*pool.Config().ConnConfig), nil)
	require.NoError(t, err)
	require.NoError(t, migrator.Up(ctx))
	require.NoError(t, migrator.Close())

	tdb := &testDB{container: container, db: database.NewFromPool(pool, nil)}
	t.Cleanup(func() {
		pool.Close()
		_ = container.Terminate(context.Background())
	})
	return tdb
}

// seedUser inserts a user with generated identity and the given password
func seedUser(t *testing.T, repo *UserRepository, password string) *models.User {
	t.Helper()

	hash, err := auth.HashPassword(password)
	require.NoError(t, err)

	user, err := repo.Create(context.Background(), &models.User{
		Email:        fmt.Sprintf("%d.%s", gofakeit.Number(1000, 9999), gofakeit.Email()),
		PasswordHash: hash,
		FirstName:    gofakeit.FirstName(),
		LastName:     gofakeit.LastName(),
	})
	require.NoError(t, err)
	return user
}
