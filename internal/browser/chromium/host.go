package chromium

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BIGWOO/clawx-auth/internal/sessioncapture"
)

const (
	devToolsPortFile = "DevToolsActivePort"
	startupTimeout   = 20 * time.Second
)

// Host launches a dedicated browser process per session.
type Host struct {
	chromePath  string
	headless    bool
	profileRoot string
	extraArgs   []string
}

var _ sessioncapture.Host = (*Host)(nil)

// HostOption configures a Host.
type HostOption func(*Host)

// WithChromePath sets the browser executable. When unset, well-known
// install locations and PATH are searched.
func WithChromePath(path string) HostOption {
	return func(h *Host) {
		h.chromePath = path
	}
}

// WithHeadless runs the browser without a window.
func WithHeadless(headless bool) HostOption {
	return func(h *Host) {
		h.headless = headless
	}
}

// WithProfileRoot sets the directory under which session profiles are created.
func WithProfileRoot(dir string) HostOption {
	return func(h *Host) {
		h.profileRoot = dir
	}
}

// WithExtraArgs appends command line switches to every launch.
func WithExtraArgs(args ...string) HostOption {
	return func(h *Host) {
		h.extraArgs = append(h.extraArgs, args...)
	}
}

// NewHost creates a browser host.
func NewHost(opts ...HostOption) *Host {
	h := &Host{}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// CreateSession launches a browser with a fresh profile named after namespace
// and attaches to its page.
func (h *Host) CreateSession(ctx context.Context, namespace string) (sessioncapture.Session, error) {
	chromePath := h.chromePath
	if chromePath == "" {
		found, err := FindChrome()
		if err != nil {
			return nil, err
		}
		chromePath = found
	}

	profileDir, err := os.MkdirTemp(h.profileRoot, "clawx-"+sanitizeNamespace(namespace)+"-")
	if err != nil {
		return nil, fmt.Errorf("failed to create browser profile: %w", err)
	}

	s := newSession()
	s.profileDir = profileDir

	proc, err := startProcess(chromePath, h.args(profileDir))
	if err != nil {
		_ = os.RemoveAll(profileDir)
		return nil, err
	}
	s.proc = proc

	slog.DebugContext(ctx, "browser launched", "path", chromePath, "profile", profileDir, "pid", proc.cmd.Process.Pid)

	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	wsURL, err := waitForDevTools(startCtx, profileDir, proc)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	if err := s.attach(startCtx, wsURL); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to attach to browser: %w", err)
	}

	return s, nil
}

func (h *Host) args(profileDir string) []string {
	args := []string{
		"--user-data-dir=" + profileDir,
		"--remote-debugging-port=0",
		"--no-first-run",
		"--no-default-browser-check",
		"--disable-sync",
		"--password-store=basic",
	}
	if h.headless {
		args = append(args, "--headless=new")
	}
	args = append(args, h.extraArgs...)
	return append(args, "about:blank")
}

// waitForDevTools polls the profile for the port file the browser writes once
// its debugging endpoint is listening.
func waitForDevTools(ctx context.Context, profileDir string, proc *process) (string, error) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	path := filepath.Join(profileDir, devToolsPortFile)
	for {
		if wsURL, err := readDevToolsPort(path); err == nil {
			return wsURL, nil
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("browser did not expose devtools: %w", ctx.Err())
		case <-proc.exited:
			return "", fmt.Errorf("browser exited during startup: %v", proc.waitErr)
		case <-ticker.C:
		}
	}
}

// readDevToolsPort parses the two-line port file into a websocket URL.
func readDevToolsPort(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() && len(lines) < 2 {
		lines = append(lines, strings.TrimSpace(sc.Text()))
	}
	if len(lines) < 2 || lines[0] == "" || !strings.HasPrefix(lines[1], "/") {
		return "", errors.New("devtools port file incomplete")
	}
	return "ws://127.0.0.1:" + lines[0] + lines[1], nil
}

func sanitizeNamespace(namespace string) string {
	namespace = strings.TrimPrefix(namespace, "persist:")
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, namespace)
}

// FindChrome returns the first Chrome or Chromium executable found.
func FindChrome() (string, error) {
	for _, name := range []string{
		"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "chrome", "msedge",
	} {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}

	var candidates []string
	switch runtime.GOOS {
	case "darwin":
		candidates = []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
			"/Applications/Microsoft Edge.app/Contents/MacOS/Microsoft Edge",
		}
	case "windows":
		for _, env := range []string{"ProgramFiles", "ProgramFiles(x86)", "LocalAppData"} {
			if dir := os.Getenv(env); dir != "" {
				candidates = append(candidates, filepath.Join(dir, "Google", "Chrome", "Application", "chrome.exe"))
			}
		}
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}

	return "", errors.New("no Chrome or Chromium installation found; set browser.chrome_path")
}
