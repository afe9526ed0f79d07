package helpers

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/onsi/gomega"
	tc "github.com/testcontainers/testcontainers-go"
	tclog "github.com/testcontainers/testcontainers-go/log"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/kmjayadeep/baskit-sub000/database"
)

const (
	dbName = "syncd"
	dbUser = "syncd"
	dbPass = "syncd-integration"
)

type nopLogger struct{}

func (*nopLogger) Printf(_ string, _ ...any) {}

var _ tclog.Logger = (*nopLogger)(nil)

// SharedPostgres is the one database container every daemon in the
// suite syncs against. Sharing it is what lets two daemons see each
// other's writes.
type SharedPostgres struct {
	container *postgres.PostgresContainer

	// Pool is a direct connection for assertions and cleanup between
	// specs.
	Pool *pgxpool.Pool

	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// StartPostgres launches the container, applies the schema migrations
// and opens the assertion pool.
func StartPostgres(ctx context.Context) *SharedPostgres {
	container, err := postgres.Run(
		ctx,
		"postgres:16-alpine",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPass),
		postgres.BasicWaitStrategies(),
		tc.WithLogger(&nopLogger{}),
	)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	gomega.Expect(err).NotTo(gomega.HaveOccurred())

	m, err := database.NewFromConnectionString(connStr)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	gomega.Expect(m.Up()).To(gomega.Succeed())
	_, _ = m.Close()

	pool, err := pgxpool.New(ctx, connStr)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())

	host, err := container.Host(ctx)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	mapped, err := container.MappedPort(ctx, "5432/tcp")
	gomega.Expect(err).NotTo(gomega.HaveOccurred())

	return &SharedPostgres{
		container: container,
		Pool:      pool,
		Host:      host,
		Port:      mapped.Int(),
		User:      dbUser,
		Password:  dbPass,
		Database:  dbName,
	}
}

// Reset empties the shared tables so the next test starts from a clean
// remote. Callers must stop every daemon first or a poller may observe
// the truncation mid-test.
func (p *SharedPostgres) Reset(ctx context.Context) {
	_, err := p.Pool.Exec(ctx, "TRUNCATE lists, list_items")
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
}

// Terminate closes the pool and removes the container.
func (p *SharedPostgres) Terminate(ctx context.Context) {
	if p.Pool != nil {
		p.Pool.Close()
	}
	if p.container != nil {
		gomega.Expect(p.container.Terminate(ctx)).To(gomega.Succeed())
	}
}
