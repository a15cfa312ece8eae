package schedule

// Backend names one of the native OS scheduling mechanisms.
type Backend string

const (
	BackendCron    Backend = "cron"
	BackendLaunchd Backend = "launchd"
	BackendSystemd Backend = "systemd"
)

// DetermineBackend resolves a user backend choice ("auto" or empty means
// detect) and gates it by platform before any filesystem mutation
// happens. launchd is macOS-only and systemd Linux-only; cron is the
// universal fallback.
func (i *Installer) DetermineBackend(choice string) (Backend, error) {
	backend := Backend(choice)
	if choice == "" || choice == "auto" {
		backend = i.detectBackend()
	}
	switch backend {
	case BackendCron, BackendLaunchd, BackendSystemd:
	default:
		return "", &CapabilityError{Backend: backend, Reason: "unknown backend (use auto, cron, launchd or systemd)"}
	}
	if err := i.requireSupported(backend); err != nil {
		return "", err
	}
	return backend, nil
}

func (i *Installer) detectBackend() Backend {
	if i.goos == "darwin" {
		return BackendLaunchd
	}
	if i.goos == "linux" {
		if _, err := i.lookPath("systemctl"); err == nil {
			return BackendSystemd
		}
	}
	return BackendCron
}

func (i *Installer) requireSupported(backend Backend) error {
	if backend == BackendLaunchd && i.goos != "darwin" {
		return &CapabilityError{Backend: BackendLaunchd, Reason: "only available on macOS"}
	}
	if backend == BackendSystemd && i.goos != "linux" {
		return &CapabilityError{Backend: BackendSystemd, Reason: "only available on Linux"}
	}
	return nil
}
