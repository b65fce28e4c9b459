// Command ask answers one question from the terminal, or prints the class
// change bulletin with -changes.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/garyellow/anan-assistant-go/internal/app"
	"github.com/garyellow/anan-assistant-go/internal/config"
	"github.com/garyellow/anan-assistant-go/internal/ctxutil"
	"github.com/garyellow/anan-assistant-go/internal/logger"
	"github.com/garyellow/anan-assistant-go/internal/storage"
)

// CLI flags
var (
	questionFlag = flag.String("q", "", "Question to ask (remaining arguments are used when empty)")
	changesFlag  = flag.Bool("changes", false, "Print the class change bulletin instead of asking")
	classFlag    = flag.String("class", "", "Class filter for -changes (e.g. 3E)")
	saveFlag     = flag.Bool("save", false, "Record the question and answer in the history database")
)

func main() {
	flag.Parse()

	// The bulletin needs no completion or embedding settings
	mode := config.AskMode
	if *changesFlag {
		mode = config.VerifyMode
	}
	cfg, err := config.LoadForMode(mode)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Logs go to stderr so stdout carries only the answer
	log := logger.NewWithWriter(cfg.LogLevel, os.Stderr)
	slog.SetDefault(log.Logger)

	ctx := ctxutil.WithSource(context.Background(), ctxutil.SourceCLI)

	if *changesFlag {
		err = printChanges(ctx, cfg)
	} else {
		err = ask(ctx, cfg, question(*questionFlag, flag.Args()))
	}
	if err != nil {
		log.WithError(err).Error("ask failed")
		_, _ = fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

// question prefers the -q flag and falls back to the positional arguments.
func question(flagValue string, args []string) string {
	if q := strings.TrimSpace(flagValue); q != "" {
		return q
	}
	return strings.TrimSpace(strings.Join(args, " "))
}

func printChanges(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.ScraperTimeout*time.Duration(cfg.ScraperMaxRetries+2))
	defer cancel()

	bulletin, err := app.NewBulletin(cfg, nil)
	if err != nil {
		return err
	}
	fmt.Println(bulletin.FetchText(ctx, *classFlag))
	return nil
}

func ask(ctx context.Context, cfg *config.Config, q string) error {
	ctx, cancel := context.WithTimeout(ctx, config.WarmupTimeout)
	defer cancel()

	classifier, err := app.NewClassifier(cfg)
	if err != nil {
		return err
	}
	lib, err := app.NewLibrary(ctx, cfg, nil)
	if err != nil {
		return err
	}
	asst, err := app.NewAssistant(ctx, cfg, classifier, lib, nil)
	if err != nil {
		return err
	}

	answer := asst.Ask(ctx, q)
	fmt.Println(answer.Text)
	slog.DebugContext(ctx, "Answered", "intent", answer.Intent, "outcome", answer.Outcome)

	if !*saveFlag || q == "" {
		return nil
	}
	db, err := storage.New(ctx, cfg.HistoryPath(), config.DatabaseBusyTimeout)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer func() { _ = db.Close() }()
	if _, err := db.Append(ctx, storage.PageCLI, q, answer.Text); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}
