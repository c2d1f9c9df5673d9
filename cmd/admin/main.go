// Command admin moderates submissions from the command line using the same
// services as the HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"fourwcycle/internal/auth"
	"fourwcycle/internal/config"
	"fourwcycle/internal/server"
)

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: admin [-format text|json|yaml] [-host localhost:8080] <command> [args]")
	fmt.Fprintln(os.Stderr, "  list [status]          - List submissions, optionally by status")
	fmt.Fprintln(os.Stderr, "  show <id>              - Show one submission")
	fmt.Fprintln(os.Stderr, "  approve <id> [note]    - Approve a submission")
	fmt.Fprintln(os.Stderr, "  reject <id> [note]     - Reject a submission")
	fmt.Fprintln(os.Stderr, "  delete <id>            - Delete a submission and its photos")
	fmt.Fprintln(os.Stderr, "  stats                  - Count submissions per status")
	fmt.Fprintln(os.Stderr, "  sweep                  - Run one reconciliation sweep")
	fmt.Fprintln(os.Stderr, "  token                  - Issue an admin credential")
	fmt.Fprintln(os.Stderr, "  watch                  - Stream moderation events from a running server")
}

func main() {
	format := flag.String("format", "text", "output format: text, json or yaml")
	host := flag.String("host", "localhost:8080", "server address for watch")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}
	out, err := newPrinter(os.Stdout, *format)
	if err != nil {
		log.Fatal(err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer func() { _ = srv.Shutdown(context.Background()) }()

	if err := run(context.Background(), srv, out, *host, flag.Args()); err != nil {
		log.Print(err)
		os.Exit(1)
	}
}

func run(ctx context.Context, srv *server.Server, out *printer, host string, args []string) error {
	ctx = auth.WithPrincipal(ctx, auth.Operator("cli"))
	svc := srv.Submissions()

	switch args[0] {
	case "list":
		status := ""
		if len(args) > 1 {
			status = args[1]
		}
		records, err := svc.ListAll(ctx, status)
		if err != nil {
			return err
		}
		return out.Records(records)

	case "show":
		id, err := argID(args)
		if err != nil {
			return err
		}
		record, err := svc.GetOne(ctx, id)
		if err != nil {
			return err
		}
		return out.Record(record)

	case "approve", "reject":
		id, err := argID(args)
		if err != nil {
			return err
		}
		note := strings.Join(args[2:], " ")
		status := "approved"
		if args[0] == "reject" {
			status = "rejected"
		}
		record, err := svc.Transition(ctx, id, status, note)
		if err != nil {
			return err
		}
		return out.Record(record)

	case "delete":
		id, err := argID(args)
		if err != nil {
			return err
		}
		result, err := svc.Delete(ctx, id)
		if err != nil {
			return err
		}
		return out.Value(result)

	case "stats":
		stats, err := svc.Stats(ctx)
		if err != nil {
			return err
		}
		return out.Value(stats)

	case "sweep":
		report, err := svc.Reconcile(ctx)
		if err != nil {
			return err
		}
		return out.Value(report)

	case "token":
		result, err := srv.Auth().IssueOperatorToken()
		if err != nil {
			return err
		}
		return out.Value(result)

	case "watch":
		result, err := srv.Auth().IssueOperatorToken()
		if err != nil {
			return err
		}
		return watch(ctx, host, result.Token, out)

	default:
		usage()
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func argID(args []string) (uint, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("usage: admin %s <id>", args[0])
	}
	id, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", args[1])
	}
	return uint(id), nil
}
