package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/listing"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

var auditColumns = map[string]string{
	"actor":           "actor",
	"action":          "action",
	"entity":          "entity",
	"entity_id":       "entity_id",
	listing.SortField: "created_at",
}

type PostgresAuditStore struct {
	db *sql.DB
}

func NewPostgresAuditStore(cred *Credentials) (*PostgresAuditStore, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	return &PostgresAuditStore{db: db}, nil
}

func (r *PostgresAuditStore) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "audit_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (r *PostgresAuditStore) RecordAudit(ctx context.Context, e domain.AuditEntry) error {
	id, err := uuid.Parse(e.ID)
	if err != nil {
		return fmt.Errorf("audit id %q: %w", e.ID, err)
	}

	query := `INSERT INTO audit_logs (id, actor, action, entity, entity_id, details, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = r.db.ExecContext(ctx, query,
		id,
		e.Actor,
		e.Action,
		e.Entity,
		e.EntityID,
		e.Details,
		e.CreatedAt.UTC().Truncate(time.Microsecond))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("audit entry %s already recorded", e.ID)
		}
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (r *PostgresAuditStore) Key(e domain.AuditEntry) string {
	return e.ID
}

func (r *PostgresAuditStore) Anchor(ctx context.Context, id string) (listing.Anchor, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return listing.Anchor{}, listing.ErrCursorNotFound
	}

	var createdAt time.Time
	err = r.db.QueryRowContext(ctx, `SELECT created_at FROM audit_logs WHERE id = $1`, uid).Scan(&createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return listing.Anchor{}, listing.ErrCursorNotFound
	}
	if err != nil {
		return listing.Anchor{}, fmt.Errorf("query cursor: %w", err)
	}
	return listing.Anchor{CreatedAt: createdAt, ID: uid.String()}, nil
}

func (r *PostgresAuditStore) Find(ctx context.Context, plan listing.Plan) ([]domain.AuditEntry, error) {
	where, args, err := sqlWhere(plan, auditColumns)
	if err != nil {
		return nil, err
	}

	order := "DESC"
	if plan.Reverse {
		order = "ASC"
	}
	args = append(args, plan.Limit)
	query := fmt.Sprintf(`SELECT id, actor, action, entity, entity_id, details, created_at
	          FROM audit_logs %s ORDER BY created_at %s, id %s LIMIT $%d`, where, order, order, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.AuditEntry, 0, plan.Limit)
	for rows.Next() {
		var e domain.AuditEntry
		var id uuid.UUID
		if err := rows.Scan(&id, &e.Actor, &e.Action, &e.Entity, &e.EntityID, &e.Details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.ID = id.String()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit logs: %w", err)
	}
	return entries, nil
}

func (r *PostgresAuditStore) Close() error {
	return r.db.Close()
}

// sqlWhere builds a WHERE clause with numbered placeholders. Column names come
// from the whitelist only.
func sqlWhere(plan listing.Plan, columns map[string]string) (string, []any, error) {
	var conds []string
	var args []any

	for _, f := range plan.Filters {
		col, ok := columns[f.Field]
		if !ok {
			return "", nil, fmt.Errorf("%w: unknown field %s", listing.ErrUnsupportedFilter, f.Field)
		}
		value := f.Value
		if d, ok := value.(decimal.Decimal); ok {
			value = d.String()
		}
		if t, ok := value.(time.Time); ok {
			value = t.UTC()
		}
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s %s $%d", col, sqlOp(f.Op), len(args)))
	}

	if plan.After != nil {
		cmp := "<"
		if plan.Reverse {
			cmp = ">"
		}
		args = append(args, plan.After.CreatedAt.UTC(), plan.After.ID)
		conds = append(conds, fmt.Sprintf("(created_at, id) %s ($%d, $%d)", cmp, len(args)-1, len(args)))
	}

	if len(conds) == 0 {
		return "", args, nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args, nil
}

func sqlOp(op listing.Op) string {
	if op == listing.OpEq {
		return "="
	}
	return string(op)
}
