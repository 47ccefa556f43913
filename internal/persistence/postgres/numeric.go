package postgres

import (
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// numericFromNullDecimal converts an optional decimal into a pgtype.Numeric
// value. Absent decimals map to SQL NULL.
func numericFromNullDecimal(value decimal.NullDecimal) (pgtype.Numeric, error) {
	var out pgtype.Numeric
	if !value.Valid {
		return out, nil
	}
	text := value.Decimal.String()
	if err := out.Scan(text); err != nil {
		return out, fmt.Errorf("parse numeric %q: %w", text, err)
	}
	return out, nil
}

// nullDecimalFromColumn parses a nullable NUMERIC column scanned as text.
func nullDecimalFromColumn(value sql.NullString) (decimal.NullDecimal, error) {
	if !value.Valid {
		return decimal.NullDecimal{}, nil
	}
	parsed, err := decimal.NewFromString(value.String)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("parse numeric column %q: %w", value.String, err)
	}
	return decimal.NullDecimal{Decimal: parsed, Valid: true}, nil
}
