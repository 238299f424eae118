package board

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

// Store is the row-oriented interface over the operational circuit_boards
// table. The write-back phase of a pass is the only mutation path.
type Store interface {
	// SelectNeedingBackfill returns rows where at least one targeted field
	// is empty.
	SelectNeedingBackfill(ctx context.Context, targets Targets) ([]Record, error)
	// SelectAll returns a full snapshot of the table.
	SelectAll(ctx context.Context) ([]Record, error)
	// ApplyUpdates writes all updates inside a single transaction. Any
	// failure rolls the whole batch back.
	ApplyUpdates(ctx context.Context, updates []Update) error
	Close() error
}

const boardColumns = "id, board_top, board_bottom, board_assembled_on, board_fa_nummer, board_artikel_nummer, board_erfasst_am"

// SQLStore implements Store over MySQL (production) or SQLite (local runs
// and tests). Both drivers take `?` placeholders, so the SQL is shared.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// OpenSQLStore connects to the operational database and verifies the
// connection.
func OpenSQLStore(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open board database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping board database: %w", err)
	}
	return &SQLStore{db: db, driver: driver}, nil
}

// NewSQLStore wraps an already-open handle; used by tests.
func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// RegisterMySQLCA installs a custom CA bundle for the mysql driver under the
// TLS config name "custom"; the DSN then selects it with tls=custom.
func RegisterMySQLCA(caPath string) error {
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return fmt.Errorf("read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return fmt.Errorf("no certificates found in %s", caPath)
	}
	return mysql.RegisterTLSConfig("custom", &tls.Config{RootCAs: pool})
}

func (s *SQLStore) SelectNeedingBackfill(ctx context.Context, targets Targets) ([]Record, error) {
	var conds []string
	if targets.AssembledAt {
		conds = append(conds, "board_assembled_on IS NULL")
	}
	if targets.Lot {
		conds = append(conds, "(board_fa_nummer IS NULL OR TRIM(board_fa_nummer) = '')")
	}
	if targets.BoardType {
		conds = append(conds, "(board_artikel_nummer IS NULL OR TRIM(board_artikel_nummer) = '')")
	}
	if len(conds) == 0 {
		return nil, fmt.Errorf("no backfill targets selected")
	}

	query := fmt.Sprintf("SELECT %s FROM circuit_boards WHERE %s ORDER BY id", boardColumns, strings.Join(conds, " OR "))
	return s.selectRecords(ctx, query)
}

func (s *SQLStore) SelectAll(ctx context.Context) ([]Record, error) {
	return s.selectRecords(ctx, fmt.Sprintf("SELECT %s FROM circuit_boards ORDER BY id", boardColumns))
}

func (s *SQLStore) selectRecords(ctx context.Context, query string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select boards: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec       Record
			top       sql.NullString
			bottom    sql.NullString
			assembled sql.NullTime
			lot       sql.NullString
			boardType sql.NullString
			recorded  sql.NullTime
		)
		if err := rows.Scan(&rec.ID, &top, &bottom, &assembled, &lot, &boardType, &recorded); err != nil {
			return nil, fmt.Errorf("scan board row: %w", err)
		}
		rec.TopBarcode = top.String
		rec.BottomBarcode = bottom.String
		rec.Lot = lot.String
		rec.BoardType = boardType.String
		if assembled.Valid {
			t := assembled.Time
			rec.AssembledAt = &t
		}
		if recorded.Valid {
			t := recorded.Time
			rec.RecordedAt = &t
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate board rows: %w", err)
	}
	return out, nil
}

func (s *SQLStore) ApplyUpdates(ctx context.Context, updates []Update) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update transaction: %w", err)
	}
	defer tx.Rollback()

	for _, u := range updates {
		var sets []string
		var args []any
		if u.AssembledAt != nil {
			sets = append(sets, "board_assembled_on = ?")
			args = append(args, *u.AssembledAt)
		}
		if u.Lot != nil {
			sets = append(sets, "board_fa_nummer = ?")
			args = append(args, *u.Lot)
		}
		if u.BoardType != nil {
			sets = append(sets, "board_artikel_nummer = ?")
			args = append(args, *u.BoardType)
		}
		if len(sets) == 0 {
			continue
		}
		args = append(args, u.ID)

		query := fmt.Sprintf("UPDATE circuit_boards SET %s WHERE id = ?", strings.Join(sets, ", "))
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("update board %d: %w", u.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update transaction: %w", err)
	}
	return nil
}

// Truncate wipes a table before a fresh upload. TRUNCATE is tried first;
// DELETE is the fallback when foreign key references block it.
func (s *SQLStore) Truncate(ctx context.Context, table string) error {
	if s.driver == "mysql" {
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE `%s`", table)); err == nil {
			return nil
		}
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM `%s`", table)); err != nil {
		return fmt.Errorf("clear table %s: %w", table, err)
	}
	if s.driver == "mysql" {
		// Best effort, old MySQL versions may refuse this.
		s.db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE `%s` AUTO_INCREMENT = 1", table))
	}
	return nil
}

// BulkUpsert inserts all rows in one transaction, updating on key collision.
func (s *SQLStore) BulkUpsert(ctx context.Context, table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	var updates []string
	for i, c := range columns {
		quoted[i] = "`" + c + "`"
		placeholders[i] = "?"
		if c != "created_at" {
			updates = append(updates, fmt.Sprintf("`%s` = VALUES(`%s`)", c, c))
		}
	}

	var query string
	if s.driver == "mysql" {
		query = fmt.Sprintf("INSERT INTO `%s` (%s) VALUES (%s) ON DUPLICATE KEY UPDATE %s",
			table, strings.Join(quoted, ", "), strings.Join(placeholders, ", "), strings.Join(updates, ", "))
	} else {
		query = fmt.Sprintf("INSERT OR REPLACE INTO `%s` (%s) VALUES (%s)",
			table, strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for i, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("upsert row %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert transaction: %w", err)
	}
	return nil
}
