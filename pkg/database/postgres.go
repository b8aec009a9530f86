package database

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"clientbridge/pkg/apperrors"
	"clientbridge/pkg/logger"

	"github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/postgres/*.sql
var postgresMigrations embed.FS

// PostgresDatabase PostgreSQL数据库实现
type PostgresDatabase struct {
	*sqlStore
	rls bool
}

// NewPostgresDatabase 创建PostgreSQL数据库实例。
// With rls set every call runs in a transaction scoped to the caller's JWT claims.
func NewPostgresDatabase(dsn string, rls bool) (*PostgresDatabase, error) {
	// 尝试多种连接策略 (serverless 环境下 IPv6/SSL 问题)
	dsn = strings.TrimSpace(dsn)
	strategies := []string{
		addConnectionParams(dsn, "connect_timeout=10"),
		addConnectionParams(dsn, "sslmode=require&connect_timeout=10"),
		dsn, // 最后尝试原始DSN
	}

	var lastErr error
	for i, strategy := range strategies {
		db, err := sql.Open("postgres", strategy)
		if err != nil {
			logger.Warn("postgres strategy failed to open", "strategy", i+1, "error", err)
			lastErr = err
			continue
		}

		// 设置连接池参数，适合无服务器环境
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = db.PingContext(ctx)
		cancel()
		if err != nil {
			logger.Warn("postgres strategy failed to ping", "strategy", i+1, "error", err)
			db.Close()
			lastErr = err
			continue
		}

		logger.Info("postgres connection established", "strategy", i+1)
		return newPostgresDatabase(db, rls), nil
	}

	return nil, fmt.Errorf("all connection strategies failed: %w", lastErr)
}

func newPostgresDatabase(db *sql.DB, rls bool) *PostgresDatabase {
	pg := &PostgresDatabase{rls: rls}
	pg.sqlStore = &sqlStore{
		db:        db,
		dialect:   dialectPostgres,
		translate: translatePostgresError,
	}
	if rls {
		pg.sqlStore.scope = pg.claimsScope
	}
	return pg
}

// addConnectionParams 添加连接参数到DSN
func addConnectionParams(dsn, params string) string {
	if params == "" {
		return dsn
	}
	// key=value 形式的 DSN 用空格分隔
	if !strings.Contains(dsn, "://") {
		return dsn + " " + strings.ReplaceAll(params, "&", " ")
	}
	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}
	return dsn + separator + params
}

// claimsScope mirrors what PostgREST does per request: the caller's claims
// become request.jwt.claims and the role switches to authenticated (or anon).
func (pg *PostgresDatabase) claimsScope(ctx context.Context, fn func(q querier) error) error {
	role := "anon"
	claims := map[string]interface{}{"role": role}
	if caller, ok := CallerFrom(ctx); ok {
		role = "authenticated"
		claims = map[string]interface{}{
			"sub":   caller.UserID,
			"email": caller.Email,
			"role":  role,
		}
	}
	encoded, err := json.Marshal(claims)
	if err != nil {
		return err
	}

	tx, err := pg.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "SELECT set_config('request.jwt.claims', $1, true)", string(encoded)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "SET LOCAL ROLE "+pq.QuoteIdentifier(role)); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// translatePostgresError maps SQLSTATE codes onto the error taxonomy
func translatePostgresError(err error, what string) error {
	if err == nil {
		return nil
	}
	if mapped := commonSQLError(err, what); mapped != nil {
		return mapped
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "42501": // insufficient_privilege, raised by RLS policies
			return apperrors.Wrap(err, apperrors.KindUnauthorized, "You do not have access to this "+strings.ToLower(what))
		case "23505": // unique_violation
			return apperrors.Wrap(err, apperrors.KindBackend, what+" already exists").WithCode(apperrors.CodeDuplicate)
		case "23503": // foreign_key_violation
			return apperrors.Wrap(err, apperrors.KindValidation, "Referenced record does not exist")
		case "22P02", "23502", "23514": // invalid_text_representation, not_null, check
			return apperrors.Wrap(err, apperrors.KindValidation, "Invalid "+strings.ToLower(what)+" data")
		}
		if pqErr.Code.Class() == "08" {
			return apperrors.Network(err)
		}
	}
	return apperrors.Backend(err, "Failed to access "+strings.ToLower(what))
}

// MigratePostgres 执行 PostgreSQL 迁移；direction 为 up、down 或 status
func MigratePostgres(ctx context.Context, db *sql.DB, direction string) error {
	fsys, err := fs.Sub(postgresMigrations, "migrations/postgres")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}

	switch direction {
	case "", "up":
		results, err := provider.Up(ctx)
		for _, r := range results {
			logger.Info("applied migration", "source", r.Source.Path, "duration", r.Duration)
		}
		return err
	case "down":
		r, err := provider.Down(ctx)
		if r != nil {
			logger.Info("rolled back migration", "source", r.Source.Path)
		}
		return err
	case "status":
		statuses, err := provider.Status(ctx)
		if err != nil {
			return err
		}
		for _, st := range statuses {
			logger.Info("migration", "source", st.Source.Path, "state", string(st.State))
		}
		return nil
	default:
		return fmt.Errorf("unknown migration direction %q", direction)
	}
}
