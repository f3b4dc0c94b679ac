// Package config persists the hotspot Config record to a host-local
// directory, with the WPA2 passphrase kept in a separate 0600 side-file so
// it never round-trips through the main YAML record. Writes are atomic
// (write-temp-then-rename) and serialized against an advisory directory
// lock, grounded on the teacher's YAML config store.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"

	"github.com/openvr-net/hotspotd/internal/types"
)

// Dir is the daemon's state directory. It is a var, not a const, so tests
// can point it at a temp directory.
var Dir = defaultDir()

func defaultDir() string {
	if d := os.Getenv("HOTSPOTD_STATE_DIR"); d != "" {
		return d
	}
	return "/var/lib/hotspotd"
}

func configPath() string     { return filepath.Join(Dir, "config.yaml") }
func passphrasePath() string { return filepath.Join(Dir, "passphrase") }
func lockPath() string       { return filepath.Join(Dir, ".lock") }

// Store is the config persistence API consumed by the lifecycle core and,
// transitively, the (out of scope) control plane.
type Store struct {
	dir string
}

// NewStore returns a Store rooted at dir. Pass "" to use the package-level
// Dir (the normal daemon entrypoint path).
func NewStore(dir string) *Store {
	if dir == "" {
		dir = Dir
	}
	return &Store{dir: dir}
}

func (s *Store) configPath() string     { return filepath.Join(s.dir, "config.yaml") }
func (s *Store) passphrasePath() string { return filepath.Join(s.dir, "passphrase") }
func (s *Store) lockPath() string       { return filepath.Join(s.dir, ".lock") }

func (s *Store) ensureDir() error {
	return os.MkdirAll(s.dir, 0700)
}

// Load reads the persisted Config, returning defaults if the file is
// absent. Keys absent from a saved file take their default value, since
// Load unmarshals onto an already-defaulted record.
func (s *Store) Load() (types.Config, error) {
	cfg := types.Defaults()
	b, err := os.ReadFile(s.configPath())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Patch application happens at the caller (lifecycle/control-plane
// boundary) via ApplyPatch in patch.go; Save itself takes the
// already-merged, fully-populated record.
//
// Save validates the full record, persists the passphrase (if supplied)
// to its own 0600 side-file, clears it from the in-memory record, and
// atomically writes the main record. The directory lock is held for the
// whole operation so concurrent saves cannot interleave.
func (s *Store) Save(cfg types.Config) (types.Config, error) {
	if errs := types.Validate(cfg); len(errs) > 0 {
		return cfg, newValidationError(errs)
	}

	if err := s.ensureDir(); err != nil {
		return cfg, fmt.Errorf("ensure state dir: %w", err)
	}

	lock := flock.New(s.lockPath())
	ctx, cancel := lockContext(2 * time.Second)
	defer cancel()
	locked, err := lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil || !locked {
		return cfg, fmt.Errorf("acquire config lock: %w", err)
	}
	defer lock.Unlock()

	if cfg.WPA2Passphrase != "" {
		if err := writeFileAtomic(s.passphrasePath(), []byte(cfg.WPA2Passphrase), 0600); err != nil {
			return cfg, fmt.Errorf("persist passphrase: %w", err)
		}
	}
	persisted := cfg
	persisted.WPA2Passphrase = ""

	b, err := yaml.Marshal(persisted)
	if err != nil {
		return cfg, fmt.Errorf("marshal config: %w", err)
	}
	if err := writeFileAtomic(s.configPath(), b, 0600); err != nil {
		return cfg, fmt.Errorf("persist config: %w", err)
	}

	return persisted, nil
}

// PassphraseInfo reports whether a passphrase is set and its length,
// without revealing the value — used to build RedactedConfig.
func (s *Store) PassphraseInfo() (set bool, length int) {
	b, err := os.ReadFile(s.passphrasePath())
	if err != nil {
		return false, 0
	}
	return true, len(b)
}

// RevealPassphrase returns the stored passphrase. confirm must be true;
// callers (the control plane) are expected to have already obtained
// explicit user confirmation before calling with confirm=true.
func (s *Store) RevealPassphrase(confirm bool) (string, *types.LifecycleError) {
	if !confirm {
		return "", types.NewError(types.ErrConfirmationRequired,
			"revealing the passphrase requires explicit confirmation", "", nil)
	}
	b, err := os.ReadFile(s.passphrasePath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", types.NewError(types.ErrPassphraseNotSet, "no passphrase has been saved", "", nil)
		}
		return "", types.NewError(types.ErrInternal, "failed to read passphrase", "", err)
	}
	return string(b), nil
}

func newValidationError(errs []types.FieldError) *types.LifecycleError {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return &types.LifecycleError{
		Kind: types.ErrConfigInvalid,
		Detail: &types.ErrorDetail{
			Title:  "configuration failed validation",
			Errors: msgs,
		},
	}
}
