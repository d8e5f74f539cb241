package postgres

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/evertweb/programajava-sub002/pkg/logger"
)

// Esquemas embebidos por servicio.
const (
	SchemaLedger    = "ledger"
	SchemaInvoicing = "invoicing"
)

//go:embed migrations/ledger/*.sql migrations/invoicing/*.sql
var migrationsFS embed.FS

// Migrate aplica las migraciones pendientes del esquema indicado sobre dsn (postgres://...).
func Migrate(dsn, schema string, log *logger.Logger) error {
	sub, err := fs.Sub(migrationsFS, "migrations/"+schema)
	if err != nil {
		return fmt.Errorf("migraciones %s: %w", schema, err)
	}
	src, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("fuente de migraciones %s: %w", schema, err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, pgx5URL(dsn, schema))
	if err != nil {
		return fmt.Errorf("crear migrador: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("aplicar migraciones %s: %w", schema, err)
	}
	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("versión de migraciones: %w", err)
	}
	log.Info().Str("schema", schema).Uint("version", version).Bool("dirty", dirty).Msg("migraciones aplicadas")
	return nil
}

// pgx5URL adapta el DSN al esquema del driver pgx/v5 de golang-migrate y separa la tabla
// de versiones por servicio (ledger e invoicing pueden compartir base en desarrollo).
func pgx5URL(dsn, schema string) string {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(dsn, prefix) {
			dsn = "pgx5://" + strings.TrimPrefix(dsn, prefix)
			break
		}
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "x-migrations-table=schema_migrations_" + schema
}
