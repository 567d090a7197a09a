package main

import (
	"database/sql"
	"flag"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/maternar/sync-engine/internal/config"
)

// Applies the goose migrations under migrations/. Commands mirror the goose
// CLI: up (default), down, status, version.
func main() {
	dir := flag.String("dir", "migrations", "directory with migration files")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := sql.Open("pgx", cfg.GetDBConnString())
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	command := "up"
	if args := flag.Args(); len(args) > 0 {
		command = args[0]
	}

	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatalf("Failed to set dialect: %v", err)
	}

	switch command {
	case "up":
		err = goose.Up(db, *dir)
	case "down":
		err = goose.Down(db, *dir)
	case "status":
		err = goose.Status(db, *dir)
	case "version":
		err = goose.Version(db, *dir)
	default:
		log.Printf("Unknown command %q (want up, down, status or version)", command)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("Migration %s failed: %v", command, err)
	}
}
