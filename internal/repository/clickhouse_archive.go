package repository

import (
	"context"
	"fmt"
	"strings"

	"quantterm/internal/domain/models"
	drepo "quantterm/internal/domain/repository"
	pkgch "quantterm/pkg/clickhouse"
)

const archiveDDL = `CREATE TABLE IF NOT EXISTS %s.feature_history (
	symbol      String,
	date        Date,
	returns     Float64,
	volatility  Float64,
	momentum_5d Float64,
	corr_dxy    Float64,
	macro_rate  Float64
) ENGINE = ReplacingMergeTree ORDER BY (symbol, date)`

// ClickHouseArchive streams engineered feature rows into a columnar history
// table. It is pure telemetry: the caller logs and drops append errors.
type ClickHouseArchive struct {
	client   *pkgch.Client
	database string
}

func NewClickHouseArchive(ctx context.Context, client *pkgch.Client, database string) (*ClickHouseArchive, error) {
	stmts := []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(archiveDDL, database),
	}
	if err := client.InitSchema(ctx, stmts); err != nil {
		return nil, fmt.Errorf("archive schema: %w", err)
	}
	return &ClickHouseArchive{client: client, database: database}, nil
}

func (a *ClickHouseArchive) Append(ctx context.Context, rows []models.FeatureRow) error {
	if len(rows) == 0 {
		return nil
	}

	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*7)
	for _, r := range rows {
		values = append(values, "(?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			r.Symbol, r.Timestamp, r.Returns, r.Volatility, r.Momentum5D, r.CorrDXY, r.MacroRate)
	}

	q := fmt.Sprintf(
		"INSERT INTO %s.feature_history (symbol, date, returns, volatility, momentum_5d, corr_dxy, macro_rate) VALUES %s",
		a.database, strings.Join(values, ","))
	if _, err := a.client.DB().ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("archive append: %w", err)
	}
	return nil
}

func (a *ClickHouseArchive) Close() error { return a.client.Close() }

var _ drepo.FeatureArchive = (*ClickHouseArchive)(nil)
