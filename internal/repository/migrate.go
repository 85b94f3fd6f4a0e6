package repository

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
)

const (
	runsTable     = "extraction_runs"
	outcomesTable = "chunk_outcomes"
)

// Migrate creates the run tables when they do not exist.
func (d *DB) Migrate(ctx context.Context) error {
	b := entsql.Dialect(d.dialect)
	stmts := []entsql.Querier{
		b.CreateTable(runsTable).IfNotExists().
			Columns(
				b.Column("id").Type("varchar(36)").Attr("NOT NULL"),
				b.Column("output_format").Type("varchar(16)").Attr("NOT NULL"),
				b.Column("schema_description").Type("text").Attr("NOT NULL"),
				b.Column("sources").Type("text").Attr("NOT NULL"),
				b.Column("total").Type("integer").Attr("NOT NULL"),
				b.Column("valid").Type("integer").Attr("NOT NULL"),
				b.Column("partial").Type("integer").Attr("NOT NULL"),
				b.Column("failed").Type("integer").Attr("NOT NULL"),
				b.Column("is_valid").Type("boolean").Attr("NOT NULL"),
				b.Column("status").Type("varchar(16)").Attr("NOT NULL"),
				b.Column("started_at").Type("varchar(40)").Attr("NOT NULL"),
				b.Column("finished_at").Type("varchar(40)").Attr("NOT NULL"),
			).
			PrimaryKey("id"),
		b.CreateTable(outcomesTable).IfNotExists().
			Columns(
				b.Column("run_id").Type("varchar(36)").Attr("NOT NULL"),
				b.Column("chunk_index").Type("integer").Attr("NOT NULL"),
				b.Column("kind").Type("varchar(16)").Attr("NOT NULL"),
				b.Column("failure_kind").Type("varchar(16)"),
				b.Column("failure_detail").Type("text"),
				b.Column("record").Type("text"),
				b.Column("errors").Type("text"),
				b.Column("source").Type("text"),
				b.Column("duration_ms").Type("bigint").Attr("NOT NULL"),
			).
			PrimaryKey("run_id", "chunk_index"),
	}
	for _, st := range stmts {
		q, args := st.Query()
		if err := d.drv.Exec(ctx, q, args, nil); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	d.logger.Info("database migrated", "tables", []string{runsTable, outcomesTable})
	return nil
}
