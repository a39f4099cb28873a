package sheets

import (
	"context"
	"errors"
)

// Ports for outbound adapters. Tables are addressed by name (one worksheet
// per table); the first row of every table is its header.
type (
	RowAppender interface {
		AppendRow(ctx context.Context, table string, fields []any) error
	}

	// RowReader returns every row of a table, header included, with each cell
	// rendered as a string.
	RowReader interface {
		ReadAllRows(ctx context.Context, table string) ([][]string, error)
	}

	// RecordReader returns the data rows of a table keyed by header name.
	RecordReader interface {
		ReadAllRecords(ctx context.Context, table string) ([]map[string]string, error)
	}

	Store interface {
		RowAppender
		RowReader
		RecordReader
	}
)

var ErrUnknownTable = errors.New("unknown table")
