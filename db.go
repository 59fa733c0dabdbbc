// db.go
//
// SQLite helpers for the optional riddle catalog database.
// Responsibilities:
//   - Opening SQLite database with safe defaults (WAL, busy timeout, foreign keys).
//   - Applying migrations from MIGRATIONS_DIR/*.sql (idempotent, recorded in _migrations).
//   - Seeding an empty catalog from the embedded riddles and loading it back.
//
// Note: game state is never written here; only the static catalog lives in SQLite.

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/riddler/internal/riddles"
)

// openDB opens (and creates if missing) a SQLite database file.
//
//   - Ensures parent directory exists for relative DSNs (e.g. ./data/riddles.db).
//   - Configures busy timeout and WAL journaling mode.
//   - Enforces foreign keys.
func openDB(dsn string) (*sql.DB, error) {
	dir := filepath.Dir(dsn)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", dsn+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	return db, nil
}

// migrate applies *.sql files from root in lexical order.
//
//   - Uses a _migrations table to track applied files (by base name).
//   - Skips files already applied.
//   - Scripts with BEGIN TRANSACTION or PRAGMA FOREIGN_KEYS=OFF manage their
//     own transaction and run as-is; everything else runs inside one.
func migrate(db *sql.DB, root string) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS _migrations (name TEXT PRIMARY KEY);`); err != nil {
		return fmt.Errorf("create _migrations: %w", err)
	}

	var files []string
	if err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(strings.ToLower(d.Name()), ".sql") {
			files = append(files, path)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("walk sql dir: %w", err)
	}
	sort.Strings(files)

	for _, f := range files {
		name := filepath.Base(f)
		var done int
		err := db.QueryRow(`SELECT 1 FROM _migrations WHERE name=?`, name).Scan(&done)
		if err == nil {
			log.Debug().Str("migration", name).Msg("already applied")
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("query _migrations: %w", err)
		}

		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read %s: %w", f, err)
		}
		sqlText := string(sqlBytes)

		upper := strings.ToUpper(sqlText)
		selfManaged := strings.Contains(upper, "BEGIN TRANSACTION") ||
			strings.Contains(upper, "PRAGMA FOREIGN_KEYS=OFF") ||
			strings.Contains(upper, "PRAGMA FOREIGN_KEYS = OFF")

		if selfManaged {
			if _, err := db.Exec(sqlText); err != nil {
				return fmt.Errorf("apply %s: %w", name, err)
			}
			if _, err := db.Exec(`INSERT INTO _migrations(name) VALUES (?)`, name); err != nil {
				return fmt.Errorf("record %s: %w", name, err)
			}
			log.Info().Str("migration", name).Msg("applied (self-managed)")
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(sqlText); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", name, err)
		}
		if _, err := tx.Exec(`INSERT INTO _migrations(name) VALUES (?)`, name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", name, err)
		}
		log.Info().Str("migration", name).Msg("applied")
	}
	return nil
}

/* --------------------------- catalog helpers ---------------------------- */

// seedCatalog inserts qs when the riddles table is empty. Returns the
// number of rows inserted.
func seedCatalog(ctx context.Context, db *sql.DB, qs []riddles.Question) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(1) FROM riddles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count riddles: %w", err)
	}
	if n > 0 {
		return 0, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()
	for _, q := range qs {
		if _, err := tx.ExecContext(ctx, `
            INSERT OR IGNORE INTO riddles (title, body, answer, difficulty, caution)
            VALUES (?, ?, ?, ?, ?)`,
			q.Title, q.Body, q.HiddenAnswer, q.Tier.String(), q.ResponseCaution,
		); err != nil {
			return 0, fmt.Errorf("insert %q: %w", q.Title, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit seed: %w", err)
	}
	return len(qs), nil
}

// loadCatalog reads every riddle row, ordered by id.
func loadCatalog(ctx context.Context, db *sql.DB) ([]riddles.Question, error) {
	rows, err := db.QueryContext(ctx, `
        SELECT title, body, answer, difficulty, caution
        FROM riddles
        ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query riddles: %w", err)
	}
	defer rows.Close()

	var out []riddles.Question
	for rows.Next() {
		var (
			q    riddles.Question
			tier string
		)
		if err := rows.Scan(&q.Title, &q.Body, &q.HiddenAnswer, &tier, &q.ResponseCaution); err != nil {
			return nil, err
		}
		t, err := riddles.ParseTier(tier)
		if err != nil {
			return nil, fmt.Errorf("riddle %q: %w", q.Title, err)
		}
		q.Tier = t
		out = append(out, q)
	}
	return out, rows.Err()
}

// catalogFromDB migrates, seeds from the embedded catalog if empty, and
// builds a bank from the stored rows.
func catalogFromDB(ctx context.Context, dsn, migrations string) (*riddles.Bank, error) {
	db, err := openDB(dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog db: %w", err)
	}
	defer db.Close()

	if err := migrate(db, migrations); err != nil {
		return nil, fmt.Errorf("migrate catalog db: %w", err)
	}

	def, err := riddles.Default()
	if err != nil {
		return nil, err
	}
	var seed []riddles.Question
	for _, t := range riddles.Tiers {
		seed = append(seed, def.QuestionsFor(t)...)
	}
	if n, err := seedCatalog(ctx, db, seed); err != nil {
		return nil, err
	} else if n > 0 {
		log.Info().Int("riddles", n).Msg("seeded empty catalog")
	}

	qs, err := loadCatalog(ctx, db)
	if err != nil {
		return nil, err
	}
	return riddles.New(qs)
}
