package schedule

import (
	"crypto/sha1"
	"encoding/hex"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	shellquote "github.com/kballard/go-shellquote"
)

// Markers that identify this tool's artifacts in each backend's store.
const (
	cronCommentPrefix  = "# mailmerge schedule:"
	launchdLabelPrefix = "com.gmailmailmerge."
	systemdUnitPrefix  = "mailmerge-"
)

// Flag names the rendered command vector carries so a scheduled
// invocation can locate its spec and state file. Removal re-parses stored
// commands for StateFlag, so the names are part of the artifact contract.
const (
	SpecFlag  = "--schedule-spec"
	StateFlag = "--schedule-state"
)

var labelSanitizePattern = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// SanitizeLabel reduces a job name to characters safe in file names,
// launchd labels and unit names. An empty result falls back to
// "mailmerge".
func SanitizeLabel(value string) string {
	s := labelSanitizePattern.ReplaceAllString(value, "-")
	s = strings.Trim(s, ".-")
	if s == "" {
		return "mailmerge"
	}
	return s
}

// Fingerprint is a short content hash of the rendered base command plus
// the canonical spec. Two jobs sharing a label but configured differently
// get different state files because of it.
func Fingerprint(command []string, spec Spec) string {
	src := strings.Join(command, "\n") + "\n" + spec.String()
	sum := sha1.Sum([]byte(src))
	return hex.EncodeToString(sum[:])[:8]
}

// ExtractStatePath finds the StateFlag value in a stored argument vector.
// Empty when absent.
func ExtractStatePath(args []string) string {
	for i, a := range args {
		if a == StateFlag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// extractStatePathFromCommandLine shell-splits a stored command line and
// scans it for the state flag. Unsplittable lines yield empty.
func extractStatePathFromCommandLine(line string) string {
	args, err := shellquote.Split(line)
	if err != nil {
		return ""
	}
	return ExtractStatePath(args)
}

func (i *Installer) stateBaseDir() string {
	if i.goos == "darwin" {
		return filepath.Join(i.home, "Library", "Application Support", "mailmerge")
	}
	return filepath.Join(i.home, ".local", "share", "mailmerge")
}

func (i *Installer) stateDir() string {
	return filepath.Join(i.stateBaseDir(), "schedule-state")
}

func (i *Installer) statePath(label, fingerprint string) string {
	return filepath.Join(i.stateDir(), label+"-"+fingerprint+".json")
}

func (i *Installer) launchAgentsDir() string {
	return filepath.Join(i.home, "Library", "LaunchAgents")
}

func (i *Installer) launchdLogPath(label string) string {
	return filepath.Join(i.home, "Library", "Logs", launchdLabelPrefix+label+".log")
}

func (i *Installer) systemdUserDir() string {
	return filepath.Join(i.home, ".config", "systemd", "user")
}

func (i *Installer) removeStateFile(path string) {
	if strings.TrimSpace(path) == "" {
		return
	}
	_ = os.Remove(path)
}

func (i *Installer) removeStateByLabel(label string) int {
	matches, err := filepath.Glob(filepath.Join(i.stateDir(), label+"-*.json"))
	if err != nil {
		return 0
	}
	removed := 0
	for _, m := range matches {
		if os.Remove(m) == nil {
			removed++
		}
	}
	return removed
}
