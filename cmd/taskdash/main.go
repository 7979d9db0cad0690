package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"taskdash/internal/config"
	"taskdash/internal/logging"
	"taskdash/internal/storage"
	"taskdash/internal/store"
	"taskdash/internal/ui"
)

func main() {
	flag.Usage = usage
	configFlag := flag.String("config", "", "path to config.toml")
	flag.Parse()

	configPath := config.ResolveConfigPath(*configFlag)
	cfg, err := config.LoadOrCreate(configPath)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, logFile, err := logging.OpenFile(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		fmt.Printf("failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		logger.Error("open database", "path", cfg.DBPath, "err", err)
		fmt.Printf("failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	st := store.New(ctx, db, store.WithLogger(logger), store.WithLocale(cfg.Locale))
	if saved, ok := st.LastSaved(ctx); ok {
		logger.Info("starting", "config", configPath, "db", cfg.DBPath, "tasks", st.Len(), "last_saved", saved.Local().Format(time.DateTime))
	} else {
		logger.Info("starting", "config", configPath, "db", cfg.DBPath, "tasks", st.Len())
	}

	if flag.NArg() > 0 {
		if err := runCommand(ctx, st, flag.Args(), os.Stdout); err != nil {
			logger.Error("command failed", "args", flag.Args(), "err", err)
			fmt.Printf("%v\n", err)
			stop()
			os.Exit(1)
		}
		return
	}

	if err := ui.Run(ctx, st, cfg, logger); err != nil {
		logger.Error("program exited", "err", err)
		fmt.Printf("error running program: %v\n", err)
		stop()
		os.Exit(1)
	}
}

var errUsage = errors.New("usage: taskdash [-config path] [export <file>|import <file>]")

// runCommand handles the non-interactive subcommands. An export file of "-"
// writes to out.
func runCommand(ctx context.Context, st *store.Store, args []string, out io.Writer) error {
	if len(args) != 2 {
		return errUsage
	}
	switch cmd, path := args[0], args[1]; cmd {
	case "export":
		if path == "-" {
			return st.Export(out)
		}
		if err := st.ExportToFile(ctx, path); err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
		fmt.Fprintf(out, "exported %d tasks to %s\n", st.Len(), path)
		return nil
	case "import":
		if err := st.ImportFromFile(ctx, path); err != nil {
			return fmt.Errorf("import failed: %w", err)
		}
		fmt.Fprintf(out, "imported %d tasks from %s\n", st.Len(), path)
		return nil
	default:
		return errUsage
	}
}

func usage() {
	fmt.Fprintln(flag.CommandLine.Output(), errUsage)
	flag.PrintDefaults()
}
