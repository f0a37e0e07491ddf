// Command authctl is an operator tool for the auth database. Its only
// subcommand today creates a password account directly, for bootstrapping
// an environment before the HTTP surface is reachable.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"credgate/internal/models"
	"credgate/internal/password"
	"credgate/internal/repositories/repomanager"
)

// seam for tests
var readPassword = term.ReadPassword

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("authctl", flag.ContinueOnError)
	var (
		dsn   = fs.String("dsn", os.Getenv("CREDGATE_DATABASE_DSN"), "postgres DSN")
		email = fs.String("email", "", "account email")
		name  = fs.String("name", "", "display name")
		cost  = fs.Int("bcrypt-cost", bcrypt.DefaultCost, "bcrypt cost factor")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 || fs.Arg(0) != "create-user" {
		return fmt.Errorf("usage: authctl [flags] create-user")
	}
	if *dsn == "" || *email == "" {
		return fmt.Errorf("-dsn and -email are required")
	}

	fmt.Fprint(os.Stderr, "Password: ")
	raw, err := readPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	hasher, err := password.NewHasher(*cost)
	if err != nil {
		return err
	}
	hash, err := hasher.Hash(ctx, string(raw))
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	db, err := repomanager.Open(*dsn)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	defer db.Close()
	if err := repos.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("db migration error: %w", err)
	}

	displayName := strings.TrimSpace(*name)
	addr := strings.ToLower(strings.TrimSpace(*email))
	if displayName == "" {
		displayName = addr
	}

	user, err := repos.Users(db).Create(ctx, &models.User{
		ID:           uuid.NewString(),
		Email:        addr,
		PasswordHash: hash,
		Name:         displayName,
	})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	fmt.Printf("created user %s (%s)\n", user.ID, user.Email)
	return nil
}
