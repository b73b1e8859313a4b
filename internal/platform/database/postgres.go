package database

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
)

// Schema bootstrap, not a migration system: both tables are created
// on startup if absent and never altered afterwards.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id              TEXT PRIMARY KEY,
	username        TEXT NOT NULL UNIQUE,
	email           TEXT NOT NULL,
	hashed_password TEXT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS tasks (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	due_date    TIMESTAMPTZ NOT NULL,
	completed   BOOLEAN NOT NULL DEFAULT FALSE,
	owner_id    TEXT NOT NULL REFERENCES users(id),
	created_at  TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

func Connect(connStr string) *sql.DB {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		log.Fatalf("Error opening database: %v", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Verify connection
	if err = db.Ping(); err != nil {
		log.Fatalf("Error connecting to database: %v", err)
	}

	if _, err = db.Exec(schema); err != nil {
		log.Fatalf("Error creating tables: %v", err)
	}

	fmt.Println("Successfully connected to PostgreSQL database!")
	return db
}

func Close(db *sql.DB) {
	if db != nil {
		db.Close()
		fmt.Println("Database connection closed.")
	}
}
