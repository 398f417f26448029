package writer

import "fmt"

const insertColumns = `symbol, price_change, price_change_percent, weighted_avg_price,
	last_price, last_qty, bid_price, bid_qty, ask_price, ask_qty,
	open_price, high_price, low_price, volume, quote_volume,
	open_time, close_time, first_id, last_id, count, data_time`

func insertSQL(table string) string {
	return fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		ON CONFLICT (symbol, data_time) DO NOTHING
	`, table, insertColumns)
}

func existsSQL(table string) string {
	return fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE data_time >= $1 AND data_time < $2)`, table)
}

// CombinedViewSQL returns a view over both snapshot tables with a capture
// column ('hourly' or 'daily'). Hourly and daily rows at 00:00 share a key, so
// readers that need both select from the view and filter on capture.
func CombinedViewSQL(view, hourly, daily string) string {
	return fmt.Sprintf(`CREATE OR REPLACE VIEW %[1]s AS
    SELECT %[4]s, 'hourly' AS capture FROM %[2]s
    UNION ALL
    SELECT %[4]s, 'daily' AS capture FROM %[3]s;
`, view, hourly, daily, insertColumns)
}

// CreateTableSQL returns the DDL for a snapshot table. It is not executed
// by the ingester; operators apply it when provisioning.
func CreateTableSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %[1]s (
    symbol               TEXT        NOT NULL,
    price_change         NUMERIC     NOT NULL,
    price_change_percent NUMERIC     NOT NULL,
    weighted_avg_price   NUMERIC     NOT NULL,
    last_price           NUMERIC     NOT NULL,
    last_qty             NUMERIC     NOT NULL,
    bid_price            NUMERIC     NOT NULL,
    bid_qty              NUMERIC     NOT NULL,
    ask_price            NUMERIC     NOT NULL,
    ask_qty              NUMERIC     NOT NULL,
    open_price           NUMERIC     NOT NULL,
    high_price           NUMERIC     NOT NULL,
    low_price            NUMERIC     NOT NULL,
    volume               NUMERIC     NOT NULL,
    quote_volume         NUMERIC     NOT NULL,
    open_time            TIMESTAMPTZ NOT NULL,
    close_time           TIMESTAMPTZ NOT NULL,
    first_id             BIGINT      NOT NULL,
    last_id              BIGINT      NOT NULL,
    count                BIGINT      NOT NULL,
    data_time            TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (symbol, data_time)
);
CREATE INDEX IF NOT EXISTS %[1]s_data_time_idx ON %[1]s (data_time);
`, table)
}
