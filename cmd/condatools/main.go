package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"github.com/smileynet/condatools/internal/channel"
	"github.com/smileynet/condatools/internal/conda"
	"github.com/smileynet/condatools/internal/config"
	"github.com/smileynet/condatools/internal/dashboard"
	"github.com/smileynet/condatools/internal/host"
	"github.com/smileynet/condatools/internal/logger"
	"github.com/smileynet/condatools/internal/session"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// CLI is the top-level command structure for condatools.
type CLI struct {
	Version   kong.VersionFlag `help:"Show version." short:"V"`
	Dashboard DashboardCmd     `cmd:"" help:"Open interactive environment dashboard."`
	Run       RunCmd           `cmd:"" help:"Run one backend command and print its transcript."`
}

// errCommandFailed marks a headless run that finished with the error
// banner set.
var errCommandFailed = errors.New("command failed")

// loadConfig loads layered config from user and project paths with env overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadLayered(config.Paths()...)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setup loads config and opens the diagnostic log. The returned cleanup
// closes the log file.
func setup() (*config.Config, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	closeLog, err := logger.Setup(logger.Config{Root: cfg.Log.Root, Debug: cfg.Log.Debug})
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	cleanup := func() {
		if err := closeLog(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing log: %v\n", err)
		}
	}
	return cfg, cleanup, nil
}

func newHost(cfg *config.Config) *host.ExecHost {
	return host.NewExecHost(host.CommandConfig{
		Binary: cfg.Backend.Command,
		Args:   cfg.Backend.Args,
		Dir:    cfg.Backend.Dir,
	})
}

// --- Run command ---

// RunCmd dispatches one command without the dashboard.
type RunCmd struct {
	Tag  string   `arg:"" help:"Command tag (probe, env-list, pkg-list, env-create, ...)."`
	Args []string `arg:"" optional:"" passthrough:"" help:"Arguments passed to the backend after the tag."`
}

// Run executes the run command.
func (r *RunCmd) Run() error {
	tag, ok := conda.ParseTag(r.Tag)
	if !ok {
		return fmt.Errorf("run: unknown command tag %q", r.Tag)
	}

	cfg, cleanup, err := setup()
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	h := newHost(cfg)
	defer h.Wait()
	err = r.run(ctx, os.Stdout, tag, h, h, logger.L())
	return withLogHint(err, logger.Path())
}

// run dispatches the command and pumps events until the gate stays clear,
// which includes any list refresh the result schedules.
func (r *RunCmd) run(ctx context.Context, w io.Writer, tag conda.CommandTag, starter host.Starter, src host.Source, log *slog.Logger) error {
	events := channel.NewAdapter(0)
	if err := events.Attach(src); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	defer events.Close()

	sess := session.New(ctx, starter, session.WithLogger(log))
	printed := 0
	sess.OnChange(func(st session.State) {
		if len(st.Transcript) < printed {
			printed = 0
		}
		for _, line := range st.Transcript[printed:] {
			_, _ = fmt.Fprintln(w, line)
		}
		printed = len(st.Transcript)
	})

	sess.Run(tag, r.Args...)
	for sess.Busy() {
		select {
		case ev := <-events.Events():
			sess.Handle(ev)
		case <-ctx.Done():
			return fmt.Errorf("run: %w", ctx.Err())
		}
	}

	if banner := sess.Snapshot().Banner; banner != "" {
		return fmt.Errorf("%w: %s", errCommandFailed, banner)
	}
	return nil
}

// --- Dashboard command ---

// DashboardCmd opens the interactive dashboard TUI.
type DashboardCmd struct{}

// teaRunner abstracts Bubble Tea program execution for testing.
type teaRunner interface {
	Run() (tea.Model, error)
}

// Run builds real dependencies and launches the dashboard TUI.
func (d *DashboardCmd) Run() error {
	isTTY := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	if !isTTY {
		return d.run(false, nil)
	}

	cfg, cleanup, err := setup()
	if err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	defer cleanup()

	format, err := conda.ParseExportFormat(cfg.UI.ExportFormat)
	if err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := newHost(cfg)
	events := channel.NewAdapter(0)
	if err := events.Attach(h); err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	defer events.Close()

	sess := session.New(ctx, h)
	m := dashboard.NewModel(sess, events,
		dashboard.WithPython(cfg.UI.Python),
		dashboard.WithExport(format, cfg.UI.ExportNoBuilds),
	)

	prog := tea.NewProgram(m, tea.WithAltScreen())
	err = withLogHint(d.run(true, prog), logger.Path())
	// Kill a still-running backend and stop forwarding before reaping it.
	cancel()
	events.Close()
	h.Wait()
	return err
}

// run executes the tea program, enabling testable wiring.
func (d *DashboardCmd) run(isTTY bool, prog teaRunner) error {
	if !isTTY {
		return fmt.Errorf("dashboard: requires a terminal (TTY); use `condatools run` for headless use")
	}
	_, err := prog.Run()
	return err
}

// withLogHint points a failed command at the diagnostic log file.
func withLogHint(err error, path string) error {
	if err == nil || path == "" {
		return err
	}
	return fmt.Errorf("%w (details in %s)", err, path)
}

// Exit codes.
const (
	exitSuccess = 0
	exitCommand = 1
	exitSetup   = 2
)

// exitCode maps an error to the appropriate exit code.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	if errors.Is(err, errCommandFailed) {
		return exitCommand
	}
	return exitSetup
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("condatools"),
		kong.Description("Manage conda environments through a backend helper."),
		kong.Vars{"version": version + " " + commit + " " + date},
	)
	err := ctx.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(exitCode(err))
	}
}
