// main.go - Admin control tool for funneltrack
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"
	"gorm.io/gorm"

	"funneltrack/internal"
	"funneltrack/internal/config"
	"funneltrack/internal/dailystats"
	"funneltrack/internal/pkg/clilog"
	"funneltrack/internal/seeder"
	"funneltrack/internal/timeframe"
	"funneltrack/internal/users"
)

const (
	defaultShutdownTimeout = 30 * time.Second
)

// Command defines the interface for all command implementations
type Command interface {
	// Name returns the command name
	Name() string
	// Description returns the command description
	Description() string
	// Execute runs the command with the given app and args
	Execute(ctx context.Context, app *internal.Application, args []string) error
}

// The set of available commands
var commands = []Command{
	&AggregateCommand{},
	&CreateAdminUserCommand{},
	&ChangeAdminPasswordCommand{},
	&MigrateCommand{},
	&SeedCommand{},
	&StatusCommand{},
	&HelpCommand{},
}

func main() {
	flag.Parse()

	cli := clilog.New(config.GetConfig())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := <-sigChan
		cli.Infof("Received signal: %v, initiating cleanup...", sig)
		cancel()
	}()

	cmdName, args := parseArgs()

	cmd := findCommand(cmdName)
	if cmd == nil {
		showUsageAndExit()
	}

	app, err := internal.NewApp()
	if err != nil {
		cli.WithError(err).Warn("Failed to initialize app, proceeding with limited functionality")
	}

	defer func() {
		if app != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
			defer cancel()
			if err := app.Shutdown(shutdownCtx); err != nil {
				cli.WithError(err).Warn("Cleanup error")
			}
		}
	}()

	if err := cmd.Execute(ctx, app, args); err != nil {
		cli.WithError(err).Fatalf("Command %s failed", cmd.Name())
	}

	cli.Infof("Command %s completed successfully", cmd.Name())
}

// AggregateCommand computes daily aggregates: a single date, the last N
// days, or a full backfill from the earliest session.
type AggregateCommand struct{}

func (c *AggregateCommand) Name() string { return "aggregate" }

func (c *AggregateCommand) Description() string {
	return "Computes daily aggregates (-date YYYY-MM-DD | -days N | -backfill) [-force]"
}

func (c *AggregateCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet("aggregate", flag.ContinueOnError)
	dateStr := fs.String("date", "", "compute a single date (YYYY-MM-DD)")
	days := fs.Int("days", 0, "compute the last N days")
	backfill := fs.Bool("backfill", false, "compute every day from the earliest session through yesterday")
	force := fs.Bool("force", false, "recompute days that already have an aggregate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if app == nil {
		return fmt.Errorf("app initialization failed, cannot aggregate")
	}

	cli := clilog.New(config.GetConfig())
	logger := slog.Default()

	switch {
	case *backfill:
		result, err := dailystats.Backfill(app.DBManager, logger, *force)
		if err != nil {
			return err
		}
		cli.Infof("Backfill complete: %d computed, %d skipped", result.Computed, result.Skipped)
		return nil

	case *dateStr != "":
		date, err := time.Parse(timeframe.DateFormat, *dateStr)
		if err != nil {
			return fmt.Errorf("invalid date %q: %w", *dateStr, err)
		}
		computed, err := dailystats.ComputeDailyAggregate(app.DBManager, logger, date, *force)
		if err != nil {
			return err
		}
		if computed {
			cli.Infof("Computed aggregate for %s", *dateStr)
		} else {
			cli.Infof("Aggregate for %s already exists, skipped (use -force to recompute)", *dateStr)
		}
		return nil

	case *days > 0:
		computed, skipped := 0, 0
		today := time.Now().UTC().Truncate(24 * time.Hour)
		for i := *days; i >= 1; i-- {
			date := today.AddDate(0, 0, -i)
			ok, err := dailystats.ComputeDailyAggregate(app.DBManager, logger, date, *force)
			if err != nil {
				cli.WithError(err).Warnf("Skipping %s", date.Format(timeframe.DateFormat))
				skipped++
				continue
			}
			if ok {
				computed++
			} else {
				skipped++
			}
		}
		cli.Infof("Aggregation complete: %d computed, %d skipped", computed, skipped)
		return nil

	default:
		return fmt.Errorf("one of -date, -days or -backfill is required")
	}
}

// CreateAdminUserCommand implements the command to create an initial admin user
type CreateAdminUserCommand struct{}

func (c *CreateAdminUserCommand) Name() string {
	return "create-admin-user"
}

func (c *CreateAdminUserCommand) Description() string {
	return "Creates an initial admin user"
}

func (c *CreateAdminUserCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: %s <email> [password]", c.Name())
	}
	email := args[0]

	var password string
	if len(args) >= 2 {
		password = args[1]
	} else {
		entered, err := promptPassword("Enter password: ")
		if err != nil {
			return err
		}
		confirmed, err := promptPassword("Confirm password: ")
		if err != nil {
			return err
		}
		if entered != confirmed {
			return fmt.Errorf("passwords do not match")
		}
		password = entered
	}
	if password == "" {
		return fmt.Errorf("password cannot be empty")
	}

	var db *gorm.DB
	if app != nil {
		db = app.DBManager.GetConnection()
	} else {
		return fmt.Errorf("app initialization failed, cannot connect to database")
	}

	if err := users.CreateAdminUser(db, email, password); err != nil {
		if errors.Is(err, users.ErrUserExists) {
			fmt.Printf("User %s already exists\n", email)
			return nil
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Printf("Admin user %s created\n", email)
	return nil
}

// ChangeAdminPasswordCommand implements password update for existing admin user
type ChangeAdminPasswordCommand struct{}

func (c *ChangeAdminPasswordCommand) Name() string {
	return "change-admin-password"
}

func (c *ChangeAdminPasswordCommand) Description() string {
	return "Changes the password of an existing admin user"
}

func (c *ChangeAdminPasswordCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	reader := bufio.NewReader(os.Stdin)

	var email string
	if len(args) >= 1 {
		email = args[0]
	} else {
		fmt.Print("Enter admin email: ")
		input, _ := reader.ReadString('\n')
		email = strings.TrimSpace(input)
	}
	if email == "" {
		return fmt.Errorf("email is required")
	}

	var db *gorm.DB
	if app != nil {
		db = app.DBManager.GetConnection()
	} else {
		return fmt.Errorf("app initialization failed, cannot connect to database")
	}

	if _, err := users.FindByEmail(db, email); err != nil {
		return fmt.Errorf("user lookup failed: %w", err)
	}

	var newPassword string
	if len(args) >= 2 {
		newPassword = args[1]
	} else {
		pwd1, err := promptPassword("Enter new password: ")
		if err != nil {
			return err
		}
		pwd2, err := promptPassword("Confirm new password: ")
		if err != nil {
			return err
		}
		if pwd1 != pwd2 {
			return fmt.Errorf("passwords do not match")
		}
		newPassword = pwd1
	}
	if newPassword == "" {
		return fmt.Errorf("password cannot be empty")
	}

	if err := users.ChangePassword(db, email, newPassword); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	fmt.Println("Password updated successfully")
	return nil
}

// promptPassword reads a password without echoing when stdin is a
// terminal, falling back to plain reads for piped input.
func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	input, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(input), nil
}

// StatusCommand implements a command to check the system status
type StatusCommand struct{}

func (c *StatusCommand) Name() string {
	return "status"
}

func (c *StatusCommand) Description() string {
	return "Shows the current system status"
}

func (c *StatusCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if app == nil {
		return fmt.Errorf("cannot check status: app initialization failed")
	}

	db := app.DBManager.GetConnection()

	var userCount int64
	if err := db.Model(&users.User{}).Count(&userCount).Error; err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	var sessionCount, eventCount, conversionCount, aggregateCount int64
	db.Table("sessions").Count(&sessionCount)
	db.Table("events").Count(&eventCount)
	db.Table("conversion_records").Count(&conversionCount)
	db.Table("daily_aggregates").Count(&aggregateCount)

	fmt.Println("System Status:")
	fmt.Println("- Database: Connected")
	fmt.Printf("- Admin users: %d\n", userCount)
	fmt.Printf("- Sessions: %d\n", sessionCount)
	fmt.Printf("- Events: %d\n", eventCount)
	fmt.Printf("- Conversions: %d\n", conversionCount)
	fmt.Printf("- Daily aggregates: %d\n", aggregateCount)

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get SQL DB: %w", err)
	}
	fmt.Printf("- Max Open Connections: %d\n", sqlDB.Stats().MaxOpenConnections)
	fmt.Printf("- Open Connections: %d\n", sqlDB.Stats().OpenConnections)

	return nil
}

// HelpCommand implements a command to show usage information
type HelpCommand struct{}

func (c *HelpCommand) Name() string {
	return "help"
}

func (c *HelpCommand) Description() string {
	return "Shows usage information"
}

func (c *HelpCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fmt.Println("Usage: ftctl [command] [args...]")
	fmt.Println("Available commands:")

	for _, cmd := range commands {
		fmt.Printf("  %s: %s\n", cmd.Name(), cmd.Description())
	}

	return nil
}

// MigrateCommand runs database migrations
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string        { return "migrate" }
func (c *MigrateCommand) Description() string { return "Runs database migrations" }

func (c *MigrateCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if app == nil {
		return fmt.Errorf("app initialization failed, cannot run migrations")
	}

	fmt.Println("Running database migrations...")
	if err := app.DBManager.MigrateDatabase(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	fmt.Println("Migrations completed successfully")
	return nil
}

// SeedCommand populates the DB with demo funnel data
type SeedCommand struct{}

func (c *SeedCommand) Name() string        { return "seed" }
func (c *SeedCommand) Description() string { return "Seeds the database with sample funnel data" }

func (c *SeedCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	days := fs.Int("days", 30, "number of days of history to generate")
	sessions := fs.Int("sessions", 2000, "approximate number of sessions to generate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if app == nil {
		return fmt.Errorf("unable to initialise app")
	}

	se := seeder.NewSeeder(app.DBManager, slog.Default(), *days, *sessions)
	return se.Run(ctx)
}

// Helper functions

// parseArgs parses the command name and arguments
func parseArgs() (string, []string) {
	args := os.Args[1:]
	if len(args) == 0 {
		return "help", []string{}
	}
	return args[0], args[1:]
}

// findCommand finds a command by name
func findCommand(name string) Command {
	for _, cmd := range commands {
		if cmd.Name() == name {
			return cmd
		}
	}
	return nil
}

// showUsageAndExit shows usage information and exits
func showUsageAndExit() {
	fmt.Println("Usage: ftctl [command] [args...]")
	fmt.Println("Available commands:")

	for _, cmd := range commands {
		fmt.Printf("  %s: %s\n", cmd.Name(), cmd.Description())
	}

	os.Exit(1)
}
