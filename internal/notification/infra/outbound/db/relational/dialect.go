package relational

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Driver de PostgreSQL
	// _ "github.com/mattn/go-sqlite3" // better performance but requires gcc
	_ "modernc.org/sqlite"
)

// Dialect recoge lo poco que cambia entre Postgres y SQLite.
type Dialect struct {
	Name       string
	DriverName string
	// numbered indica placeholders $1, $2... en lugar de ?
	numbered bool
	// jsonAsText guarda metadata como TEXT en lugar de JSONB
	jsonAsText bool
	schema     string
}

var Postgres = Dialect{
	Name:       "postgres",
	DriverName: "pgx",
	numbered:   true,
	schema: `
    CREATE TABLE IF NOT EXISTS notifications (
        id UUID PRIMARY KEY,
        channel TEXT NOT NULL,
        event_type TEXT NOT NULL,
        title TEXT NOT NULL,
        message TEXT NOT NULL,
        recipient_user_id TEXT NOT NULL DEFAULT '',
        recipient_email TEXT NOT NULL DEFAULT '',
        priority TEXT NOT NULL,
        status TEXT NOT NULL,
        metadata JSONB NOT NULL,
        retry_count INTEGER NOT NULL DEFAULT 0,
        max_retries INTEGER NOT NULL DEFAULT 3,
        sent_at TIMESTAMP WITH TIME ZONE,
        read_at TIMESTAMP WITH TIME ZONE,
        is_active BOOLEAN NOT NULL DEFAULT TRUE,
        created_at TIMESTAMP WITH TIME ZONE NOT NULL,
        updated_at TIMESTAMP WITH TIME ZONE NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications (recipient_user_id, created_at DESC);
    CREATE INDEX IF NOT EXISTS idx_notifications_status ON notifications (status);`,
}

var SQLite = Dialect{
	Name:       "sqlite",
	DriverName: "sqlite",
	jsonAsText: true,
	schema: `
        CREATE TABLE IF NOT EXISTS notifications (
            id TEXT PRIMARY KEY,
            channel TEXT NOT NULL,
            event_type TEXT NOT NULL,
            title TEXT NOT NULL,
            message TEXT NOT NULL,
            recipient_user_id TEXT NOT NULL DEFAULT '',
            recipient_email TEXT NOT NULL DEFAULT '',
            priority TEXT NOT NULL,
            status TEXT NOT NULL,
            metadata TEXT NOT NULL,
            retry_count INTEGER NOT NULL DEFAULT 0,
            max_retries INTEGER NOT NULL DEFAULT 3,
            sent_at DATETIME,
            read_at DATETIME,
            is_active BOOLEAN NOT NULL DEFAULT 1,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        );
        CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications (recipient_user_id, created_at);
        CREATE INDEX IF NOT EXISTS idx_notifications_status ON notifications (status);`,
}

// DialectFor resuelve el dialecto a partir del nombre configurado.
func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "sqlite", "sqlite3", "":
		return SQLite, nil
	}
	return Dialect{}, fmt.Errorf("unsupported database driver %q", name)
}

// Open abre la conexión, comprueba que responde y crea el esquema.
func Open(ctx context.Context, d Dialect, dsn string) (*sql.DB, error) {
	if d.Name == SQLite.Name && !strings.Contains(dsn, "_time_format") {
		dsn += sepFor(dsn) + "_time_format=sqlite"
	}

	db, err := sql.Open(d.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", d.Name, err)
	}
	if d.Name == SQLite.Name {
		// SQLite admite un único escritor
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(20)
		db.SetConnMaxIdleTime(5 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", d.Name, err)
	}

	if err := InitSchema(ctx, db, d); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// InitSchema crea la tabla 'notifications' si no existe.
func InitSchema(ctx context.Context, db *sql.DB, d Dialect) error {
	for _, stmt := range strings.Split(d.schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create notifications schema: %w", err)
		}
	}
	return nil
}

// rebind traduce los ? a $n cuando el dialecto lo requiere.
func (d Dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d Dialect) jsonArg(raw []byte) interface{} {
	if d.jsonAsText {
		return string(raw)
	}
	return raw
}

func sepFor(dsn string) string {
	if strings.Contains(dsn, "?") {
		return "&"
	}
	return "?"
}
