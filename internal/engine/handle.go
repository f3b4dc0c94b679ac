// Package engine supervises the external AP-pipeline programs (AP daemon,
// DHCP/DNS server, shell orchestrator) behind one uniform contract:
// spawn, tail logs, detect the runtime config directory a backend drops,
// classify how it exited, and guarantee the whole process group is reaped
// on stop. Concentrating process management here (rather than spread
// across helpers) means Handle's Stop is the single place "no orphaned
// children" is enforced, per spec.md §9.
package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	gopsproc "github.com/shirou/gopsutil/v3/process"

	"github.com/openvr-net/hotspotd/pkg/log"
)

// ExitClass is how an engine's exit is classified once it terminates.
type ExitClass string

const (
	ExitClean                ExitClass = "clean"
	ExitSignal               ExitClass = "signal"
	ExitCrashEarly            ExitClass = "crash_early"
	ExitCrashLate             ExitClass = "crash_late"
	ExitDriverRejectedChannel ExitClass = "driver_rejected_channel"
	ExitMissingBinary         ExitClass = "missing_binary"
	ExitDependencyMissing     ExitClass = "dependency_missing"
	ExitUnknown               ExitClass = "unknown"
)

// earlyCrashWindow is how long after spawn an unexpected exit still counts
// as "early" rather than "late" for classification purposes.
const earlyCrashWindow = 2 * time.Second

const ringBufferLines = 200

// Spec describes one engine invocation: binary, full argv (including any
// secret), which argv index to redact in Status, and where (if anywhere)
// to watch for the backend's runtime config directory to appear.
type Spec struct {
	Binary             string
	Argv               []string
	RedactArgvIndex    int // -1 if nothing to redact
	RedactPlaceholder  string
	Dir                string
	Env                []string
	WatchParentDir     string // directory fsnotify watches for a new subdir
	ConfigDirTimeout   time.Duration
}

// Handle is a single supervised child process (and its process group).
// It is the sole owner of the exec.Cmd; nothing outside this package
// touches *exec.Cmd directly.
type Handle struct {
	spec Spec

	cmd  *exec.Cmd
	pid  int

	stdout *RingBuffer
	stderr *RingBuffer
	apLogs *RingBuffer

	spawnedAt time.Time

	mu        sync.Mutex
	exited    bool
	exitClass ExitClass
	waitErr   error
	exitCh    chan struct{}

	discMu    sync.Mutex
	discDir   string
	discFound bool
}

// Spawn starts the child described by spec in its own process group and
// begins draining its stdout/stderr into bounded ring buffers. It returns
// as soon as the process has started; it does not wait for readiness.
func Spawn(ctx context.Context, spec Spec) (*Handle, error) {
	if spec.RedactArgvIndex == 0 {
		spec.RedactArgvIndex = -1
	}

	cmd := exec.Command(spec.Binary, spec.Argv...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("engine_spawn_failed: stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("engine_spawn_failed: stderr pipe: %w", err)
	}

	h := &Handle{
		spec:   spec,
		cmd:    cmd,
		stdout: NewRingBuffer(ringBufferLines),
		stderr: NewRingBuffer(ringBufferLines),
		apLogs: NewRingBuffer(ringBufferLines),
		exitCh: make(chan struct{}),
	}

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || os.IsNotExist(err) {
			return nil, fmt.Errorf("missing_binary: %w", err)
		}
		return nil, fmt.Errorf("engine_spawn_failed: %w", err)
	}

	h.pid = cmd.Process.Pid
	h.spawnedAt = time.Now()

	go drainLines(stdoutPipe, h.stdout)
	go drainLines(stderrPipe, h.stderr)
	go h.wait()

	if spec.WatchParentDir != "" {
		timeout := spec.ConfigDirTimeout
		if timeout <= 0 {
			timeout = time.Second
		}
		go h.watchConfigDir(spec.WatchParentDir, timeout)
	}

	return h, nil
}

func drainLines(r io.Reader, buf *RingBuffer) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	for sc.Scan() {
		buf.Append(sc.Text())
	}
}

func (h *Handle) wait() {
	err := h.cmd.Wait()
	h.mu.Lock()
	h.exited = true
	h.waitErr = err
	h.exitClass = classifyExit(h.cmd, err, time.Since(h.spawnedAt), h.stderr.Snapshot())
	h.mu.Unlock()
	close(h.exitCh)
}

func classifyExit(cmd *exec.Cmd, waitErr error, uptime time.Duration, stderrTail []string) ExitClass {
	tail := strings.Join(stderrTail, "\n")
	switch {
	case strings.Contains(tail, "No such file or directory") && strings.Contains(tail, "exec"):
		return ExitMissingBinary
	case strings.Contains(tail, "error while loading shared libraries"):
		return ExitDependencyMissing
	case strings.Contains(tail, "Invalid argument") && strings.Contains(tail, "channel"),
		strings.Contains(tail, "Device or resource busy") && strings.Contains(tail, "channel"),
		strings.Contains(tail, "could not set channel"):
		return ExitDriverRejectedChannel
	}

	if waitErr == nil {
		return ExitClean
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return ExitSignal
		}
		if exitErr.ExitCode() == 0 {
			return ExitClean
		}
	}

	if uptime < earlyCrashWindow {
		return ExitCrashEarly
	}
	return ExitCrashLate
}

// watchConfigDir polls WatchParentDir for a new subdirectory within
// timeout, using fsnotify so it reacts to the first CREATE event rather
// than sleeping the whole bound. Bounded to ~1s per spec.md §4.7 step 6 /
// §5.
func (h *Handle) watchConfigDir(parent string, timeout time.Duration) {
	if existing, ok := firstSubdir(parent); ok {
		h.setDiscoveredDir(existing)
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warnf("engine: failed to create fsnotify watcher: %v", err)
		return
	}
	defer watcher.Close()

	if err := watcher.Add(parent); err != nil {
		return
	}

	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					h.setDiscoveredDir(ev.Name)
					return
				}
			}
		case <-deadline:
			return
		case <-h.exitCh:
			return
		}
	}
}

func firstSubdir(parent string) (string, bool) {
	entries, err := os.ReadDir(parent)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if e.IsDir() {
			return parent + "/" + e.Name(), true
		}
	}
	return "", false
}

func (h *Handle) setDiscoveredDir(dir string) {
	h.discMu.Lock()
	defer h.discMu.Unlock()
	h.discDir = dir
	h.discFound = true
}

// DiscoveredConfigDir returns the backend's runtime config directory, if
// one has been found yet.
func (h *Handle) DiscoveredConfigDir() (string, bool) {
	h.discMu.Lock()
	defer h.discMu.Unlock()
	return h.discDir, h.discFound
}

// PID returns the child's process id.
func (h *Handle) PID() int { return h.pid }

// RedactedArgv returns the spawned argv with the secret argument (if any)
// replaced by a placeholder, safe to embed in Status.
func (h *Handle) RedactedArgv() []string {
	argv := append([]string{h.spec.Binary}, h.spec.Argv...)
	if h.spec.RedactArgvIndex >= 0 && h.spec.RedactArgvIndex < len(argv) {
		ph := h.spec.RedactPlaceholder
		if ph == "" {
			ph = "<redacted>"
		}
		argv[h.spec.RedactArgvIndex] = ph
	}
	return argv
}

// IsAlive reports whether the child process is still running. It prefers
// gopsutil (which distinguishes a reaped zombie from a live process) over
// a bare signal-0 check.
func (h *Handle) IsAlive() bool {
	h.mu.Lock()
	exited := h.exited
	h.mu.Unlock()
	if exited {
		return false
	}
	p, err := gopsproc.NewProcess(int32(h.pid))
	if err != nil {
		return false
	}
	running, err := p.IsRunning()
	return err == nil && running
}

// ExitReason returns the classified exit reason, or ("", false) if the
// process hasn't exited yet.
func (h *Handle) ExitReason() (ExitClass, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.exited {
		return "", false
	}
	return h.exitClass, true
}

// TailLogs returns copies of the stdout, stderr, and (if the backend
// populates it via AppendAPLog) AP daemon log ring buffers.
func (h *Handle) TailLogs() (stdout, stderr, apLogs []string) {
	return h.stdout.Snapshot(), h.stderr.Snapshot(), h.apLogs.Snapshot()
}

// AppendAPLog records one line of AP daemon log output discovered outside
// of the child's own stdout/stderr (e.g. tailed from a file the backend's
// config directs it to write to).
func (h *Handle) AppendAPLog(line string) { h.apLogs.Append(line) }

// Stop sends SIGTERM to the process group, waits up to grace for exit,
// then SIGKILL, and blocks until the process group is reaped. It is safe
// to call Stop on an already-exited Handle.
func (h *Handle) Stop(ctx context.Context, grace time.Duration) error {
	h.mu.Lock()
	alreadyExited := h.exited
	h.mu.Unlock()
	if alreadyExited {
		return nil
	}

	_ = syscall.Kill(-h.pid, syscall.SIGTERM)

	select {
	case <-h.exitCh:
		return nil
	case <-time.After(grace):
	case <-ctx.Done():
	}

	_ = syscall.Kill(-h.pid, syscall.SIGKILL)

	select {
	case <-h.exitCh:
		return nil
	case <-time.After(5 * time.Second):
		return fmt.Errorf("engine: process group %d did not reap after SIGKILL", h.pid)
	}
}
