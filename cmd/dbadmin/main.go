// Command dbadmin creates the schema and lists tables.
//
//	dbadmin --init      create missing tables
//	dbadmin --tables    list tables in the store
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"trivia/config"
	"trivia/database"
	"trivia/logging"
)

type loadFunc func() (*config.Settings, error)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, config.Init)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, load loadFunc) int {
	fs := flag.NewFlagSet("dbadmin", flag.ContinueOnError)
	fs.SetOutput(stderr)
	initSchema := fs.Bool("init", false, "Initialize the database")
	listTables := fs.Bool("tables", false, "List all tables")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if !*initSchema && !*listTables {
		fs.Usage()
		return 2
	}

	cfg, err := load()
	if err != nil {
		var cfgErr *config.Error
		if errors.As(err, &cfgErr) {
			fmt.Fprintf(stderr, "Configuration error: %v\n", err)
		} else {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 1
	}

	store, err := database.Open(ctx, cfg, logging.NewCLI(cfg))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer store.Close()

	if *initSchema {
		if err := store.InitSchema(ctx); err != nil {
			fmt.Fprintf(stderr, "Error initializing database: %v\n", err)
			return 1
		}
		fmt.Fprintln(stdout, "Database initialized successfully")
	}

	if *listTables {
		tables, err := store.TableNames(ctx)
		if err != nil {
			fmt.Fprintf(stderr, "Error listing tables: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "Database tables (%d):\n", len(tables))
		for _, name := range tables {
			fmt.Fprintf(stdout, "  - %s\n", name)
		}
	}
	return 0
}
