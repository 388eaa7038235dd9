// Package cli is the sheetchart command tree. Every command runs against a
// single workspace whose token is mirrored to a local SQLite file.
package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"sheetchart-web/internal/async"
	"sheetchart-web/internal/charts"
	"sheetchart-web/internal/guard"
	"sheetchart-web/internal/session"
	"sheetchart-web/internal/shared/config"
	"sheetchart-web/internal/shared/storage/db"
	localstore "sheetchart-web/internal/shared/storage/object/local"
	"sheetchart-web/internal/shared/telemetry"
	"sheetchart-web/internal/workspace"
)

const guardAnnotation = "guard"

// ErrSilent marks a failure whose message was already shown as a notice.
var ErrSilent = errors.New("reported")

type env struct {
	out, errOut io.Writer
	configPath  string
	verbose     bool

	profile  config.Profile
	db       *sql.DB
	ws       *workspace.Workspace
	exporter *charts.Exporter
}

// Execute runs the command tree and returns the process exit code.
func Execute(ctx context.Context, args []string, out, errOut io.Writer) int {
	e := &env{out: out, errOut: errOut}
	root := e.rootCmd()
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)

	err := root.ExecuteContext(ctx)
	e.flushNotices()
	e.close()
	if err == nil {
		return 0
	}
	if !errors.Is(err, ErrSilent) {
		fmt.Fprintln(errOut, "error:", err)
	}
	return 1
}

func (e *env) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sheetchart",
		Short:         "Upload spreadsheets and chart them from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := e.open(cmd.Context()); err != nil {
				return err
			}
			return e.guard(cmd)
		},
	}
	root.PersistentFlags().StringVar(&e.configPath, "config", "", "profile file (default ~/.sheetchart/config.yaml)")
	root.PersistentFlags().BoolVarP(&e.verbose, "verbose", "v", false, "log state transitions to stderr")

	root.AddCommand(
		e.loginCmd(),
		e.registerCmd(),
		e.logoutCmd(),
		e.whoamiCmd(),
		e.profileCmd(),
		e.filesCmd(),
		e.chartsCmd(),
		e.adminCmd(),
	)
	return root
}

// open loads the profile, migrates the token store and restores the session.
func (e *env) open(ctx context.Context) error {
	if e.verbose {
		telemetry.SetOutput(e.errOut)
	} else {
		telemetry.SetOutput(io.Discard)
	}

	profile, err := config.LoadProfile(e.configPath)
	if err != nil {
		return err
	}
	e.profile = profile

	sqlDB, err := db.OpenSQLite(ctx, profile.SessionDB)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	e.db = sqlDB
	if err := db.RunMigrations(ctx, sqlDB, db.DialectSQLite); err != nil {
		return fmt.Errorf("migrate session store: %w", err)
	}

	var observers []async.Observer
	if e.verbose {
		observers = append(observers, async.LogTransitions)
	}
	e.ws = workspace.New(profile.Name, workspace.Deps{
		APIBaseURL: profile.APIBaseURL,
		APITimeout: profile.Timeout,
		Store:      &session.SQLiteStore{DB: sqlDB},
		Observers:  observers,
	})
	if _, err := e.ws.Hydrate(ctx); err != nil {
		telemetry.Warn("cli.hydrate_failed", map[string]any{"error": err.Error()})
	}
	e.exporter = &charts.Exporter{Store: localstore.New(profile.ExportDir)}
	return nil
}

// guard applies the command's route guard before it runs.
func (e *env) guard(cmd *cobra.Command) error {
	var kind guard.Kind
	switch cmd.Annotations[guardAnnotation] {
	case "auth":
		kind = guard.RequireAuth
	case "admin":
		kind = guard.RequireAdmin
	default:
		return nil
	}
	d, err := guard.Check(cmd.Context(), kind, e.ws)
	if err != nil {
		return fmt.Errorf("resolve session: %w", err)
	}
	switch {
	case d.Outcome == guard.Allow:
		return nil
	case d.Location == guard.LoginPath:
		if e.ws.Notices.Len() > 0 {
			return ErrSilent
		}
		return errors.New("not logged in; run `sheetchart login` first")
	default:
		return errors.New("this command requires the admin role")
	}
}

func (e *env) close() {
	if e.db != nil {
		e.db.Close()
	}
}

// flushNotices prints queued notices to stderr. Each is shown once.
func (e *env) flushNotices() {
	if e.ws == nil {
		return
	}
	e.ws.TakeRedirect()
	for _, n := range e.ws.Notices.Drain() {
		fmt.Fprintf(e.errOut, "%s: %s\n", n.Level, n.Message)
	}
}

// failed turns an operation error into a notice. Authentication failures
// are reported by the session observer, so they add nothing here.
func (e *env) failed(err error, sliceMsg string) error {
	if err == nil {
		return nil
	}
	msg := strings.TrimSpace(sliceMsg)
	if msg == "" {
		msg = async.Message(err, "")
	}
	if msg != "" && msg != "Request failed" {
		e.ws.Notices.Error(msg)
		return ErrSilent
	}
	if e.ws.Notices.Len() > 0 {
		return ErrSilent
	}
	return err
}

func (e *env) success(msg string) { e.ws.Notices.Success(msg) }

func guarded(kind string, cmd *cobra.Command) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[guardAnnotation] = kind
	return cmd
}
