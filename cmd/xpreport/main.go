// Command xpreport runs one collection or renders reports from the stored
// history without starting the HTTP server. It is meant for cron jobs and CI.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/xptrack/internal/adapters/highscore"
	"github.com/okian/xptrack/internal/adapters/render"
	"github.com/okian/xptrack/internal/adapters/repository"
	app "github.com/okian/xptrack/internal/app"
	"github.com/okian/xptrack/internal/config"
	"github.com/okian/xptrack/internal/domain/history"
	"github.com/okian/xptrack/pkg/logger"
)

const usage = `usage: xpreport <command> [flags]

commands:
  collect    fetch today's snapshot, append it and refresh the README section
  readme     refresh the README section from the stored history
  markdown   print the Markdown table
  report     print the enriched report as JSON
  html       write the HTML report page

Configuration is read from XPTRACK_CONFIG and XPTRACK_* variables.
`

// errUsage is returned for unknown commands and bad flags.
var errUsage = errors.New("invalid usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			os.Stderr.WriteString(usage)
		}
		os.Stderr.WriteString("xpreport: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, args := args[0], args[1:]

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		window  = fs.String("window", "", "Number of most recent days, or \"all\" (default: recent_window for readme, all otherwise)")
		output  = fs.String("o", "", "Output file for html (default: stdout)")
		title   = fs.String("title", "", "Page title for html (default: character name)")
		timeout = fs.Duration("timeout", 2*time.Minute, "Overall timeout")
		verbose = fs.Bool("verbose", false, "Enable debug logging")
	)
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithOutput(os.Stderr)); err != nil {
		return err
	}
	_ = logger.SetLevelString(cfg.LogLevel)
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	store, err := repository.Open(ctx, repository.Settings{
		Driver:      cfg.StoreDriver,
		HistoryPath: cfg.HistoryPath,
		LatestPath:  cfg.LatestPath,
		SQLitePath:  cfg.SQLitePath,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	opts := []app.Option{
		app.WithLogger(logger.Named("xpreport")),
		app.WithStore(store),
		app.WithReadmePath(cfg.ReadmePath),
		app.WithRecentWindow(cfg.RecentWindow),
		app.WithMilestoneGranularity(cfg.MilestoneGranularity),
	}

	switch cmd {
	case "collect":
		fetcher, err := highscore.New(cfg.World, cfg.Vocation, cfg.Character,
			highscore.WithBaseURL(cfg.HighscoreBaseURL),
			highscore.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.HTTPTimeoutMS) * time.Millisecond}),
			highscore.WithMaxPages(cfg.MaxPages),
			highscore.WithSnapshotPath(cfg.SnapshotPath),
		)
		if err != nil {
			return err
		}
		svc := app.New(append(opts, app.WithFetcher(fetcher))...)
		res, err := svc.Collect(ctx)
		if err != nil {
			return err
		}
		return writeJSON(stdout, res)

	case "readme":
		if cfg.ReadmePath == "" {
			return fmt.Errorf("%w: readme_path is not configured", errUsage)
		}
		if *window != "" {
			w, err := history.ParseWindow(*window)
			if err != nil {
				return err
			}
			opts = append(opts, app.WithReadmeWindow(w))
		}
		return app.New(opts...).RenderReadme(ctx)

	case "markdown", "report", "html":
		w, err := history.ParseWindow(*window)
		if err != nil {
			return err
		}
		report, err := app.New(opts...).Report(ctx, w)
		if err != nil {
			return err
		}
		switch cmd {
		case "markdown":
			_, err = fmt.Fprintln(stdout, render.Markdown(report))
			return err
		case "report":
			return writeJSON(stdout, report)
		default:
			return writeHTML(stdout, *output, pick(*title, cfg.Character), report)
		}

	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "\t")
	return enc.Encode(v)
}

func writeHTML(stdout io.Writer, path, title string, report history.Report) error {
	if path == "" {
		return render.HTML(stdout, title, report)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := render.HTML(f, title, report); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func pick(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
