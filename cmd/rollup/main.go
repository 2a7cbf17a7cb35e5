package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/alexanderramin/rollup/internal/cli"
	"github.com/alexanderramin/rollup/internal/config"
	"github.com/alexanderramin/rollup/internal/db"
	"github.com/alexanderramin/rollup/internal/logger"
	"github.com/alexanderramin/rollup/internal/repository"
	"github.com/alexanderramin/rollup/internal/service"
	"github.com/mattn/go-isatty"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		database *sql.DB
		log      *logger.Logger
	)
	defer func() {
		if database != nil {
			database.Close()
		}
		if log != nil {
			log.Sync()
		}
	}()

	app := &cli.App{}

	// Detect interactive terminal for confirmation prompts.
	app.IsInteractive = func() bool {
		return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
	}

	app.Setup = func(configPath string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		log, err = logger.New(cfg.LogMode)
		if err != nil {
			return fmt.Errorf("creating logger: %w", err)
		}

		// Open database
		dialect := db.DialectSQLite
		switch cfg.DB.Driver {
		case config.DriverPostgres:
			dialect = db.DialectPostgres
			database, err = db.OpenPostgres(context.Background(), cfg.DB.DSN)
		default:
			database, err = db.OpenDB(cfg.DB.Path)
		}
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		log.Debug("store opened", "driver", cfg.DB.Driver)

		store := repository.NewSQLStore(db.NewUnitOfWork(database, dialect))
		app.Engine = service.NewEngine(store, service.Config{
			Create:            service.CreateConfig{DefaultSegment: cfg.DefaultSegment},
			PropagatingStates: cfg.PropagatingStates,
		}, log, service.NewLogUseCaseObserver(log))
		return nil
	}

	// Execute root command
	rootCmd := cli.NewRootCmd(app)
	return rootCmd.Execute()
}
