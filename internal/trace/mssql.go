package trace

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/microsoft/go-mssqldb"
)

// lookupSQL ranks every trace row per barcode and keeps only the most recent
// one. The ranking lives server-side so a batch of N barcodes costs one
// round trip regardless of how many process steps each panel went through.
const lookupSQL = `
WITH ranked AS (
    SELECT
        tp.Barcode AS Barcode,
        td.EndDate AS EndDate,
        td.BeginDate AS BeginDate,
        td.Id AS TraceId,
        o.Name     AS Losname,
        b.Name     AS Leiterplatte,
        ROW_NUMBER() OVER (
            PARTITION BY tp.Barcode
            ORDER BY td.EndDate DESC, td.BeginDate DESC, td.Id DESC
        ) AS rn
    FROM [dbo].[vTracePanel5] tp
    INNER JOIN [dbo].[vTraceData5] td ON td.Id = tp.TraceDataId
    INNER JOIN [dbo].[vTraceJob5]  tj ON tj.TraceDataId = td.Id
    INNER JOIN [dbo].[vJob5]        j ON j.Id = tj.JobId
    LEFT  JOIN [dbo].[vOrder5]      o ON o.Id = j.OrderId
    LEFT  JOIN [dbo].[vBoard5]      b ON b.Id = j.BoardId
    WHERE tp.Barcode IN (%s)
)
SELECT Barcode, EndDate, BeginDate, TraceId, Losname, Leiterplatte
FROM ranked
WHERE rn = 1;`

// SQLStore queries the SQL Server traceability database. It never writes.
type SQLStore struct {
	db *sql.DB
}

// OpenSQLStore connects to the trace database and verifies the connection.
func OpenSQLStore(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("open trace database: %w", err)
	}

	db.SetMaxOpenConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping trace database: %w", err)
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// LookupBatch resolves one batch of barcodes. Barcodes that have no trace
// rows are simply missing from the result.
func (s *SQLStore) LookupBatch(ctx context.Context, barcodes []string) ([]Record, error) {
	if len(barcodes) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(barcodes))
	args := make([]any, len(barcodes))
	for i, bc := range barcodes {
		placeholders[i] = fmt.Sprintf("@p%d", i+1)
		args[i] = bc
	}
	query := fmt.Sprintf(lookupSQL, strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("trace lookup (%d barcodes): %w", len(barcodes), err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec       Record
			end       sql.NullTime
			begin     sql.NullTime
			lot       sql.NullString
			boardType sql.NullString
		)
		if err := rows.Scan(&rec.Barcode, &end, &begin, &rec.Seq, &lot, &boardType); err != nil {
			return nil, fmt.Errorf("scan trace row: %w", err)
		}
		rec.Barcode = strings.TrimSpace(rec.Barcode)
		if end.Valid {
			t := end.Time
			rec.EndTime = &t
		}
		if begin.Valid {
			t := begin.Time
			rec.BeginTime = &t
		}
		rec.Lot = strings.TrimSpace(lot.String)
		rec.BoardType = strings.TrimSpace(boardType.String)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trace rows: %w", err)
	}
	return out, nil
}
