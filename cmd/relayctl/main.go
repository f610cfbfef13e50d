// Command relayctl runs operator tasks against the relay database.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"sms-relay/internal/auth"
	"sms-relay/internal/config"
	"sms-relay/internal/volunteers"
	"sms-relay/migrations"
	"sms-relay/pkg/logger"
	"sms-relay/pkg/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const usage = `usage: relayctl <command> [flags]

commands:
  migrate                                      apply database migrations
  add-volunteer -email E -name N -password P   create a volunteer account
  issue-token -email E                         print a token pair for a volunteer
`

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		slog.Error("relayctl failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	db, err := utils.OpenPostgres(ctx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{MaxOpenConns: 2, MaxIdleConns: 1})
	if err != nil {
		return err
	}
	defer db.Close()

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "migrate":
		return migrate(ctx, db, out)
	case "add-volunteer", "issue-token":
		tokens, err := auth.NewManager(cfg.Auth)
		if err != nil {
			return err
		}
		svc := volunteers.NewService(volunteers.NewPostgresRepo(db), tokens, cfg.Presence.Timeout)
		if cmd == "add-volunteer" {
			return addVolunteer(ctx, svc, rest, out)
		}
		return issueToken(ctx, svc, rest, out)
	default:
		return errUsage
	}
}

func migrate(ctx context.Context, db *sql.DB, out io.Writer) error {
	applied, err := utils.Migrate(ctx, db, migrations.FS)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		fmt.Fprintln(out, "schema up to date")
		return nil
	}
	for _, v := range applied {
		fmt.Fprintln(out, "applied", v)
	}
	return nil
}

func addVolunteer(ctx context.Context, svc *volunteers.Service, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("add-volunteer", flag.ContinueOnError)
	email := fs.String("email", "", "login email")
	name := fs.String("name", "", "display name")
	password := fs.String("password", "", "initial password (min 8 characters)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *email == "" || *name == "" || *password == "" {
		return errUsage
	}

	v, err := svc.Register(ctx, *email, *name, *password)
	if err != nil {
		return err
	}
	return writeJSON(out, v)
}

func issueToken(ctx context.Context, svc *volunteers.Service, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("issue-token", flag.ContinueOnError)
	email := fs.String("email", "", "volunteer email")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *email == "" {
		return errUsage
	}

	v, err := svc.GetByEmail(ctx, *email)
	if err != nil {
		return err
	}
	pair, err := svc.IssueTokens(ctx, v)
	if err != nil {
		return err
	}
	return writeJSON(out, pair)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
