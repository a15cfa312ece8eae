package schedule

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"time"

	logx "github.com/jradcliffe5/mailmerge/pkg/logx"
)

// Installer owns the install/overwrite/remove lifecycle across the three
// backends. All platform inputs (home, GOOS, uid, tool lookup, clock,
// external processes) are fields so tests can substitute them.
type Installer struct {
	home     string
	goos     string
	run      runner
	lookPath func(string) (string, error)
	uid      func() int
	now      func() time.Time
	log      logx.Logger
}

func NewInstaller(log logx.Logger) (*Installer, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home dir: %w", err)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Installer{
		home:     home,
		goos:     runtime.GOOS,
		run:      execRunner{},
		lookPath: exec.LookPath,
		uid:      os.Getuid,
		now:      time.Now,
		log:      log,
	}, nil
}

// Request describes one job to install.
//
// BaseArgs is the command vector without the schedule flags; it seeds the
// fingerprint. Render produces the vector actually persisted in the
// artifact, with SpecFlag/StateFlag appended by the caller (the CLI layer
// owns its own flag surface). Render must be non-nil.
type Request struct {
	Label     string
	Spec      Spec
	Display   string // original user expression, for logs
	Timezone  string // IANA hint name used during normalization, for logs
	BaseArgs  []string
	Render    func(spec, statePath string) []string
	WorkDir   string // working directory recorded in launchd/systemd units
	Overwrite bool
}

// Result reports where an installed job landed.
type Result struct {
	Backend   Backend
	Label     string
	Location  string
	StatePath string
	NextDue   time.Time
}

// Install registers one job with the chosen backend. Collision detection
// runs before any mutation; the due-time state file is initialized before
// the backend registration is touched, so the first scheduled invocation
// always finds a well-defined next_due.
func (i *Installer) Install(ctx context.Context, backend Backend, req Request) (Result, error) {
	if err := i.requireSupported(backend); err != nil {
		return Result{}, err
	}
	switch backend {
	case BackendCron:
		return i.installCron(ctx, req)
	case BackendLaunchd:
		return i.installLaunchd(ctx, req)
	case BackendSystemd:
		return i.installSystemd(ctx, req)
	default:
		return Result{}, &CapabilityError{Backend: backend, Reason: "unknown backend"}
	}
}

// RemoveAll unregisters every job bearing this tool's marker for the
// backend, deletes the artifacts and their state files, and returns the
// count removed. Zero removed is not an error and mutates nothing.
func (i *Installer) RemoveAll(ctx context.Context, backend Backend) (int, error) {
	if err := i.requireSupported(backend); err != nil {
		return 0, err
	}
	switch backend {
	case BackendCron:
		return i.removeCronJobs(ctx)
	case BackendLaunchd:
		return i.removeLaunchdJobs(ctx)
	case BackendSystemd:
		return i.removeSystemdJobs(ctx)
	default:
		return 0, &CapabilityError{Backend: backend, Reason: "unknown backend"}
	}
}

// prepare computes the job identity and initializes its state file.
func (i *Installer) prepare(req Request) (label, fingerprint, statePath string, next time.Time, err error) {
	label = SanitizeLabel(req.Label)
	fingerprint = Fingerprint(req.BaseArgs, req.Spec)
	statePath = i.statePath(label, fingerprint)
	next, err = InitState(statePath, req.Spec, i.now(), req.Overwrite)
	return label, fingerprint, statePath, next, err
}

func (i *Installer) logInstalled(backend Backend, req Request, res Result) {
	fields := []logx.Field{
		logx.String("backend", string(backend)),
		logx.String("label", res.Label),
		logx.String("schedule", req.Display),
		logx.String("cron_spec", req.Spec.String()),
		logx.String("location", res.Location),
		logx.Time("next_due", res.NextDue),
	}
	if req.Timezone != "" {
		fields = append(fields, logx.String("timezone", req.Timezone))
	}
	i.log.Info("installed scheduled job", fields...)
}
