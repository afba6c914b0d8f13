// Command admin manages server-side resources that have no client-facing
// endpoint: operator accounts and dictionary registration from local files.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"casesync/internal/server/config"
	"casesync/internal/server/repositories/repomanager"
	"casesync/internal/server/services"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// readPassword is a test seam for term.ReadPassword.
var readPassword = func() ([]byte, error) {
	return term.ReadPassword(int(syscall.Stdin))
}

type adminApp struct {
	db    *sql.DB
	users *services.UserService
	dicts *services.DictionaryService
}

func (a *adminApp) Close() {
	_ = a.db.Close()
}

// newApp opens the database and wires the services the admin commands use.
// The caller must defer app.Close().
func newApp() (*adminApp, error) {
	cfg := config.LoadConfig()

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	m, err := repomanager.NewPostgresRepositoryManager(db)
	if err != nil {
		return nil, fmt.Errorf("initializing repositories: %w", err)
	}
	if err := m.RunMigrations(context.Background(), db); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &adminApp{
		db:    db,
		users: services.NewUserService(db, m, cfg),
		dicts: services.NewDictionaryService(db, m),
	}, nil
}

var rootCmd = &cobra.Command{
	Use:   "admin",
	Short: "Sync server administration",
}

// user command
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage operator accounts",
}

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Create an operator account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Print("Password: ")
		password, err := readPassword()
		fmt.Println()
		if err != nil {
			return fmt.Errorf("reading password: %w", err)
		}
		if len(password) == 0 {
			return fmt.Errorf("password must not be empty")
		}

		u, err := a.users.Register(cmd.Context(), args[0], string(password))
		if err != nil {
			return fmt.Errorf("creating user: %w", err)
		}

		fmt.Printf("User created: %s (%s)\n", u.UserName, u.ID)
		return nil
	},
}

// dict command
var dictCmd = &cobra.Command{
	Use:   "dict",
	Short: "Manage dictionaries",
}

var dictLabel string

var dictAddCmd = &cobra.Command{
	Use:   "add <file>",
	Short: "Register a dictionary from a file, or update it if it exists",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading dictionary file: %w", err)
		}

		name := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		label := dictLabel
		if label == "" {
			label = name
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		d, err := a.dicts.Save(cmd.Context(), name, label, string(content))
		if err != nil {
			return fmt.Errorf("saving dictionary: %w", err)
		}

		fmt.Printf("Dictionary registered: %s\n", d.Name)
		return nil
	},
}

var dictListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered dictionaries",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		list, err := a.dicts.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing dictionaries: %w", err)
		}

		for _, d := range list {
			fmt.Printf("%s\t%s\n", d.Name, d.Label)
		}
		return nil
	},
}

func init() {
	dictAddCmd.Flags().StringVarP(&dictLabel, "label", "l", "", "human-readable dictionary label")

	userCmd.AddCommand(userAddCmd)
	dictCmd.AddCommand(dictAddCmd)
	dictCmd.AddCommand(dictListCmd)

	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(dictCmd)
}
