package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jradcliffe5/mailmerge/internal/config"
	"github.com/jradcliffe5/mailmerge/internal/schedule"
	logx "github.com/jradcliffe5/mailmerge/pkg/logx"
)

func NewScheduleCommand(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Install, inspect or remove recurring send jobs",
	}
	cmd.AddCommand(
		newScheduleInstallCommand(a),
		newScheduleRemoveCommand(a),
		newScheduleShowCommand(a),
	)
	return cmd
}

const atFlagHelp = "schedule expression: a 5-field cron spec ('0 9 * * 1'), " +
	"a macro (@daily, @hourly, ...), or an ISO 8601 time/datetime ('09:30', '2024-06-05T09:30')"

func newScheduleInstallCommand(a *App) *cobra.Command {
	o := &sendOptions{}
	var (
		at        string
		backend   string
		timezone  string
		label     string
		overwrite bool
	)
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Register a recurring send with the OS scheduler",
		Long: "Register this send configuration with the native OS scheduler.\n\n" +
			"The expression is normalized to a canonical cron spec expressed in\n" +
			"machine-local wall-clock time, converted to the backend's native\n" +
			"artifact, and installed together with a per-job due-time state file\n" +
			"that keeps repeated scheduler wake-ups idempotent.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o.configPath = a.ConfigPath
			if err := o.applyConfig(cmd.Flags(), a.Config); err != nil {
				return err
			}
			return runScheduleInstall(cmd, a, o, at, backend, timezone, label, overwrite)
		},
	}
	o.addFlags(cmd.Flags())
	cmd.Flags().StringVar(&at, "at", "", atFlagHelp)
	cmd.Flags().StringVar(&backend, "backend", "auto", "scheduler backend: auto, cron, launchd or systemd")
	cmd.Flags().StringVar(&timezone, "timezone", "", "IANA timezone used to interpret ISO expressions, e.g. Europe/London")
	cmd.Flags().StringVar(&label, "label", "", "job label (default: the CSV file's base name)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace an existing job with the same label")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}

func runScheduleInstall(cmd *cobra.Command, a *App, o *sendOptions, at, backendChoice, timezone, label string, overwrite bool) error {
	if err := o.resolvePaths(); err != nil {
		return err
	}

	zone, err := schedule.ResolveZone(timezone)
	if err != nil {
		return err
	}
	norm, err := schedule.Normalize(at, zone, time.Now())
	if err != nil {
		return err
	}
	spec, err := schedule.ParseSpec(norm.Spec)
	if err != nil {
		return err
	}

	inst, err := schedule.NewInstaller(a.Log)
	if err != nil {
		return err
	}
	backend, err := inst.DetermineBackend(backendChoice)
	if err != nil {
		return err
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable path: %w", err)
	}

	if label == "" {
		label = o.labelSeed()
	}
	req := schedule.Request{
		Label:    label,
		Spec:     spec,
		Display:  norm.Display,
		Timezone: timezone,
		BaseArgs: o.args(exe, "", ""),
		Render: func(specText, statePath string) []string {
			return o.args(exe, specText, statePath)
		},
		WorkDir:   filepath.Dir(o.csv),
		Overwrite: overwrite,
	}
	res, err := inst.Install(cmd.Context(), backend, req)
	if err != nil {
		return err
	}

	// The scheduler runs the job in a bare environment; credentials have
	// to come from the persisted flags or that environment's variables.
	if o.password == "" && os.Getenv(config.EnvPassword) == "" {
		a.Log.Warn("job carries no password: ensure the scheduler environment defines " + config.EnvPassword)
	}
	if o.sender == "" && os.Getenv(config.EnvSender) == "" {
		a.Log.Warn("job carries no sender address: ensure the scheduler environment defines " + config.EnvSender)
	}

	fmt.Printf("installed %s job %q (next run %s)\n",
		res.Backend, res.Label, res.NextDue.Format("2006-01-02 15:04"))
	return nil
}

func newScheduleRemoveCommand(a *App) *cobra.Command {
	var backend string
	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove every scheduled mailmerge job for a backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := schedule.NewInstaller(a.Log)
			if err != nil {
				return err
			}
			b, err := inst.DetermineBackend(backend)
			if err != nil {
				return err
			}
			removed, err := inst.RemoveAll(cmd.Context(), b)
			if err != nil {
				return err
			}
			if removed == 0 {
				fmt.Printf("no %s jobs found to remove\n", b)
				return nil
			}
			a.Log.Info("removed scheduled jobs",
				logx.String("backend", string(b)),
				logx.Int("count", removed),
			)
			fmt.Printf("removed %d %s job(s)\n", removed, b)
			return nil
		},
	}
	cmd.Flags().StringVar(&backend, "backend", "auto", "scheduler backend: auto, cron, launchd or systemd")
	return cmd
}

// show normalizes an expression and prints every backend's artifact (or
// its capability error) without installing anything. Output goes to
// stdout so it can be piped.
func newScheduleShowCommand(a *App) *cobra.Command {
	var (
		at       string
		timezone string
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Preview the canonical cron spec and each backend's artifact",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			zone, err := schedule.ResolveZone(timezone)
			if err != nil {
				return err
			}
			norm, err := schedule.Normalize(at, zone, time.Now())
			if err != nil {
				return err
			}
			spec, err := schedule.ParseSpec(norm.Spec)
			if err != nil {
				return err
			}

			fmt.Printf("expression:    %s\n", norm.Display)
			fmt.Printf("cron spec:     %s\n", spec)

			next, err := schedule.NextRun(spec, time.Now())
			if err != nil {
				return err
			}
			fmt.Printf("next run:      %s\n", next.Format("2006-01-02 15:04"))

			if interval, err := schedule.LaunchdInterval(spec); err != nil {
				fmt.Printf("launchd:       unavailable: %v\n", err)
			} else {
				fmt.Printf("launchd:       StartCalendarInterval %v\n", interval)
			}
			if calendar, err := schedule.SystemdCalendar(spec); err != nil {
				fmt.Printf("systemd:       unavailable: %v\n", err)
			} else {
				fmt.Printf("systemd:       OnCalendar=%s\n", calendar)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", atFlagHelp)
	cmd.Flags().StringVar(&timezone, "timezone", "", "IANA timezone used to interpret ISO expressions")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}
