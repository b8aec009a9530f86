package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"clientbridge/pkg/apperrors"
	"clientbridge/pkg/logger"

	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed migrations/sqlite/*.sql
var sqliteMigrations embed.FS

// LocalDatabase 本地 SQLite 数据库实现，开发和测试时替代托管平台
type LocalDatabase struct {
	*sqlStore
	path string
}

// OpenLocalDatabase 打开（必要时创建）本地数据库并执行迁移
func OpenLocalDatabase(path string) (*LocalDatabase, error) {
	if path == "" {
		path = "./data/clientbridge.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite 只允许一个写连接
	db.SetMaxOpenConns(1)

	if err := migrateSQLite(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}

	return &LocalDatabase{
		sqlStore: &sqlStore{
			db:        db,
			dialect:   dialectSQLite,
			translate: translateSQLiteError,
		},
		path: path,
	}, nil
}

func migrateSQLite(ctx context.Context, db *sql.DB) error {
	fsys, err := fs.Sub(sqliteMigrations, "migrations/sqlite")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	for _, r := range results {
		logger.Debug("applied migration", "source", r.Source.Path, "duration", r.Duration)
	}
	return nil
}

// Path 数据库文件路径
func (db *LocalDatabase) Path() string {
	return db.path
}

func translateSQLiteError(err error, what string) error {
	if err == nil {
		return nil
	}
	if mapped := commonSQLError(err, what); mapped != nil {
		return mapped
	}

	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) {
		switch sqlErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return apperrors.Wrap(err, apperrors.KindBackend, what+" already exists").WithCode(apperrors.CodeDuplicate)
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return apperrors.Wrap(err, apperrors.KindValidation, "Referenced record does not exist")
		case sqlite3.SQLITE_CONSTRAINT_NOTNULL, sqlite3.SQLITE_CONSTRAINT_CHECK:
			return apperrors.Wrap(err, apperrors.KindValidation, "Invalid "+strings.ToLower(what)+" data")
		case sqlite3.SQLITE_CONSTRAINT:
			if strings.Contains(sqlErr.Error(), "UNIQUE") {
				return apperrors.Wrap(err, apperrors.KindBackend, what+" already exists").WithCode(apperrors.CodeDuplicate)
			}
			return apperrors.Wrap(err, apperrors.KindValidation, "Invalid "+strings.ToLower(what)+" data")
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return apperrors.Network(err)
		}
	}
	return apperrors.Backend(err, "Failed to access "+strings.ToLower(what))
}
