// Package migrations applies the embedded schema of the db storage backend:
// run records and scores in Postgres, features and a scores copy in
// ClickHouse. Every file is idempotent (CREATE ... IF NOT EXISTS), so
// applying a schema twice is a no-op.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	chstore "wallet-risk-lab/internal/storage/clickhouse"
	pgstore "wallet-risk-lab/internal/storage/postgres"
)

//go:embed postgres/*.sql clickhouse/*.sql
var schemaFS embed.FS

// schema is one backend's ordered set of migration files.
type schema struct {
	dir string
	// perStatement backends accept a single statement per Exec.
	perStatement bool
}

var (
	postgresSchema   = schema{dir: "postgres"}
	clickhouseSchema = schema{dir: "clickhouse", perStatement: true}
)

type execFunc func(ctx context.Context, sql string) error

// RunPostgresMigrations applies the Postgres schema through pool.
func RunPostgresMigrations(ctx context.Context, pool *pgstore.Pool, logger logrus.FieldLogger) error {
	return postgresSchema.apply(ctx, func(ctx context.Context, sql string) error {
		_, err := pool.Exec(ctx, sql)
		return err
	}, logger)
}

// RunClickhouseMigrations creates the database named in dsn, applies the
// ClickHouse schema and hands back the connection for the stores.
func RunClickhouseMigrations(ctx context.Context, dsn string, logger logrus.FieldLogger) (*chstore.Conn, error) {
	if err := chstore.EnsureDatabase(ctx, dsn); err != nil {
		return nil, err
	}
	conn, err := chstore.NewConn(ctx, dsn)
	if err != nil {
		return nil, err
	}

	exec := func(ctx context.Context, sql string) error { return conn.Exec(ctx, sql) }
	if err := clickhouseSchema.apply(ctx, exec, logger); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

func (s schema) files() ([]string, error) {
	files, err := fs.Glob(schemaFS, s.dir+"/*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func (s schema) apply(ctx context.Context, exec execFunc, logger logrus.FieldLogger) error {
	files, err := s.files()
	if err != nil {
		return fmt.Errorf("list %s migrations: %w", s.dir, err)
	}

	for _, file := range files {
		data, err := schemaFS.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		stmts, err := s.statements(string(data))
		if err != nil {
			return fmt.Errorf("migration %s: %w", file, err)
		}
		for _, stmt := range stmts {
			if err := exec(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration %s: %w", file, err)
			}
		}
		logger.WithFields(logrus.Fields{
			"db":         s.dir,
			"file":       file,
			"statements": len(stmts),
		}).Debug("Applied migration")
	}
	return nil
}

func (s schema) statements(sql string) ([]string, error) {
	if !s.perStatement {
		if strings.TrimSpace(sql) == "" {
			return nil, nil
		}
		return []string{sql}, nil
	}
	return splitStatements(sql)
}

// splitStatements splits sql on semicolons outside single-quoted literals
// and drops whole-line -- comments.
func splitStatements(sql string) ([]string, error) {
	var (
		stmts  []string
		cur    strings.Builder
		quoted bool
	)
	flush := func() {
		if stmt := strings.TrimSpace(cur.String()); stmt != "" {
			stmts = append(stmts, stmt)
		}
		cur.Reset()
	}

	for _, line := range strings.Split(sql, "\n") {
		if !quoted && strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		for i := 0; i < len(line); i++ {
			switch c := line[i]; {
			case c == ';' && !quoted:
				flush()
			case c == '\'':
				// '' escapes toggle twice and leave the state unchanged.
				quoted = !quoted
				cur.WriteByte(c)
			default:
				cur.WriteByte(c)
			}
		}
		cur.WriteByte('\n')
	}
	if quoted {
		return nil, fmt.Errorf("unterminated string literal")
	}
	flush()
	return stmts, nil
}
