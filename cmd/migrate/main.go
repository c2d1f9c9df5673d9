// Command migrate manages the submissions schema outside the server process.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"text/tabwriter"

	"fourwcycle/internal/config"
	"fourwcycle/internal/database"

	"gorm.io/gorm"
)

var errUsage = errors.New("unknown command")

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: migrate <command> [args]")
	fmt.Fprintln(os.Stderr, "  up                 - Apply pending SQL migrations (postgres)")
	fmt.Fprintln(os.Stderr, "  auto               - Create or update tables from the GORM models")
	fmt.Fprintln(os.Stderr, "  status             - Show the schema policy and every migration's state")
	fmt.Fprintln(os.Stderr, "  down [version]     - Revert one migration, the latest when no version is given")
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := run(context.Background(), db, cfg, os.Stdout, flag.Args()); err != nil {
		if errors.Is(err, errUsage) {
			usage()
		}
		log.Print(err)
		os.Exit(1)
	}
}

func run(ctx context.Context, db *gorm.DB, cfg *config.Config, w io.Writer, args []string) error {
	migrator := database.NewMigrator(db)

	switch args[0] {
	case "up":
		ran, err := migrator.Up(ctx)
		if err != nil {
			return err
		}
		if len(ran) == 0 {
			fmt.Fprintln(w, "Schema is up to date.")
		}
		for _, m := range ran {
			fmt.Fprintf(w, "applied %s\n", m.String())
		}
		return nil

	case "auto":
		auto := *cfg
		auto.DBSchemaMode = database.SchemaModeAuto
		if err := database.ApplySchema(ctx, db, &auto); err != nil {
			return err
		}
		fmt.Fprintf(w, "Tables synced from models on %s.\n", db.Name())
		return nil

	case "status":
		return printStatus(ctx, db, cfg, w)

	case "down":
		version := 0
		if len(args) > 1 {
			v, err := strconv.Atoi(args[1])
			if err != nil || v <= 0 {
				return fmt.Errorf("invalid version %q", args[1])
			}
			version = v
		}
		m, err := migrator.Down(ctx, version)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "reverted %s\n", m.String())
		return nil
	}
	return fmt.Errorf("%w %q", errUsage, args[0])
}

func printStatus(ctx context.Context, db *gorm.DB, cfg *config.Config, w io.Writer) error {
	status, err := database.GetSchemaStatus(ctx, db, cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "driver %s, mode %s, env %s\n", status.Driver, status.Mode, status.Environment)
	if status.WillRunAutoMigrate {
		fmt.Fprintln(w, "startup runs GORM AutoMigrate")
	}
	if !status.WillRunSQL {
		return nil
	}

	pending := make(map[int]bool, len(status.PendingMigrations))
	for _, m := range status.PendingMigrations {
		pending[m.Version] = true
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tNAME\tSTATE")
	for _, m := range database.GetMigrations() {
		state := "applied"
		if pending[m.Version] {
			state = "pending"
		}
		fmt.Fprintf(tw, "%06d\t%s\t%s\n", m.Version, m.Name, state)
	}
	return tw.Flush()
}
