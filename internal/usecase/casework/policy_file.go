package casework

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"

	"caseflow/internal/bootstrap/logging"
	"caseflow/internal/domain/casework"
	"caseflow/internal/errs"
	"caseflow/internal/ports"
)

type policyAcceptanceConfig struct {
	VendorWindow string `toml:"vendor_window"`
	GigWindow    string `toml:"gig_window"`
}

type policyReworkConfig struct {
	Window string `toml:"window"`
}

type policyMonitorConfig struct {
	Interval string `toml:"interval"`
}

type policyProfile struct {
	Version    int                    `toml:"version"`
	Acceptance policyAcceptanceConfig `toml:"acceptance"`
	Rework     policyReworkConfig     `toml:"rework"`
	Monitor    policyMonitorConfig    `toml:"monitor"`
}

// PolicyFile is the decoded workflow timing file. Missing acceptance and
// rework keys keep the defaults of casework.DefaultPolicy.
type PolicyFile struct {
	Policy casework.Policy
	// MonitorInterval is zero unless the file sets monitor.interval.
	MonitorInterval time.Duration
}

func LoadPolicyFile(path string) (PolicyFile, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return PolicyFile{}, errors.New("policy file is required")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return PolicyFile{}, errs.Wrapf(err, "read policy file %q", path)
	}
	return ParsePolicyFile(raw)
}

func ParsePolicyFile(raw []byte) (PolicyFile, error) {
	var profile policyProfile
	if err := toml.Unmarshal(raw, &profile); err != nil {
		return PolicyFile{}, errs.Wrap(err, "decode policy file")
	}
	if profile.Version != 1 {
		return PolicyFile{}, errors.New("unsupported policy version: expected version = 1")
	}

	out := PolicyFile{Policy: casework.DefaultPolicy()}
	fields := []struct {
		name   string
		raw    string
		target *time.Duration
	}{
		{"acceptance.vendor_window", profile.Acceptance.VendorWindow, &out.Policy.VendorAcceptanceWindow},
		{"acceptance.gig_window", profile.Acceptance.GigWindow, &out.Policy.GigAcceptanceWindow},
		{"rework.window", profile.Rework.Window, &out.Policy.ReworkWindow},
		{"monitor.interval", profile.Monitor.Interval, &out.MonitorInterval},
	}
	for _, field := range fields {
		value := strings.TrimSpace(field.raw)
		if value == "" {
			continue
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return PolicyFile{}, fmt.Errorf("%s: %w", field.name, err)
		}
		if d <= 0 {
			return PolicyFile{}, errors.New(field.name + " must be positive")
		}
		*field.target = d
	}
	return out, nil
}

// PolicyWatcher serves the policy from a file and reloads it when the file
// changes. A reload that fails validation keeps the previous policy.
type PolicyWatcher struct {
	path    string
	current atomic.Pointer[PolicyFile]
}

var _ ports.PolicySource = (*PolicyWatcher)(nil)

func NewPolicyWatcher(path string) (*PolicyWatcher, error) {
	w := &PolicyWatcher{path: filepath.Clean(strings.TrimSpace(path))}
	if err := w.Reload(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *PolicyWatcher) Policy() casework.Policy {
	return w.current.Load().Policy
}

func (w *PolicyWatcher) MonitorInterval() time.Duration {
	return w.current.Load().MonitorInterval
}

func (w *PolicyWatcher) Reload() error {
	file, err := LoadPolicyFile(w.path)
	if err != nil {
		return err
	}
	w.current.Store(&file)
	return nil
}

// Watch reloads the policy on changes until ctx is cancelled. The directory is
// watched so that editors replacing the file by rename are picked up.
func (w *PolicyWatcher) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errs.Wrap(err, "create policy watcher")
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return errs.Wrapf(err, "watch %q", filepath.Dir(w.path))
	}
	ctx = logging.WithAttrs(ctx,
		slog.String("component", "usecase.policy_watcher"),
		slog.String("path", w.path),
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := w.Reload(); err != nil {
				logging.Warn(ctx, "policy reload rejected", slog.Any("err", errs.Loggable(err)))
				continue
			}
			p := w.Policy()
			logging.Info(ctx, "policy reloaded",
				slog.Duration("vendor_window", p.VendorAcceptanceWindow),
				slog.Duration("gig_window", p.GigAcceptanceWindow),
				slog.Duration("rework_window", p.ReworkWindow),
			)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn(ctx, "policy watcher error", slog.Any("err", errs.Loggable(err)))
		}
	}
}
