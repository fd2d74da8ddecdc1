// File: internal/devserver/devserver.go
// Description: Starts the frontend project's own development server so a run
// without a base URL has something to validate against.

package devserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uiforge/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	ErrNoStartScript  = errors.New("no dev, start or serve script in package.json")
	ErrAlreadyRunning = errors.New("dev server is already running")
	ErrNoFreePort     = errors.New("no free port found")
)

// scriptPreference is the order in which package.json scripts are tried.
var scriptPreference = []string{"dev", "start", "serve"}

// portScanRange is how many ports above the start port are probed.
const portScanRange = 100

// readyPatterns match the startup banners of the common dev servers.
var readyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`Local:\s+https?://\S+`),
	regexp.MustCompile(`(?i)webpack compiled`),
	regexp.MustCompile(`(?i)compiled successfully`),
	regexp.MustCompile(`(?i)ready on`),
	regexp.MustCompile(`(?i)development server running`),
	regexp.MustCompile(`(?i)server running`),
	regexp.MustCompile(`(?i)VITE.*ready`),
	regexp.MustCompile(`(?i)ready in \d+\s*ms`),
}

// localPattern captures the port a server announces, which may differ from
// the one it was asked to use.
var localPattern = regexp.MustCompile(`Local:\s+https?://(?:localhost|127\.0\.0\.1|0\.0\.0\.0|\[::1?\]):(\d+)`)

// -- Start command --

type packageManifest struct {
	Scripts map[string]string `json:"scripts"`
}

// StartCommand returns the npm invocation that starts the project's dev
// server. An explicit script must exist; otherwise the first of dev, start
// and serve is used.
func StartCommand(fs afero.Fs, projectPath, script string) ([]string, error) {
	data, err := afero.ReadFile(fs, filepath.Join(projectPath, "package.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read package.json: %w", err)
	}
	var manifest packageManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse package.json: %w", err)
	}

	if script != "" {
		if _, ok := manifest.Scripts[script]; !ok {
			return nil, fmt.Errorf("script %q not found in package.json", script)
		}
		return npmArgs(script), nil
	}
	for _, name := range scriptPreference {
		if _, ok := manifest.Scripts[name]; ok {
			return npmArgs(name), nil
		}
	}
	return nil, ErrNoStartScript
}

func npmArgs(script string) []string {
	if script == "start" {
		return []string{"npm", "start"}
	}
	return []string{"npm", "run", script}
}

// FreePort returns the first port at or above start that can be bound.
func FreePort(start int) (int, error) {
	for port := start; port < start+portScanRange && port <= 65535; port++ {
		ln, err := net.Listen("tcp", ":"+strconv.Itoa(port))
		if err != nil {
			continue
		}
		_ = ln.Close()
		return port, nil
	}
	return 0, fmt.Errorf("%w in %d-%d", ErrNoFreePort, start, start+portScanRange-1)
}

// -- Manager --

// Manager owns at most one dev server process.
type Manager struct {
	logger      *zap.Logger
	fs          afero.Fs
	cfg         config.DevServerConfig
	projectPath string
	client      *http.Client

	mu      sync.Mutex
	cmd     *exec.Cmd
	done    chan struct{}
	waitErr error

	// Guarded by outMu; written by the output watchers.
	outMu    sync.Mutex
	url      string
	ready    chan struct{}
	isReady  bool
	lastLine string
}

// NewManager creates a manager for the project at projectPath.
func NewManager(logger *zap.Logger, fs afero.Fs, cfg config.DevServerConfig, projectPath string) *Manager {
	return &Manager{
		logger:      logger.Named("devserver"),
		fs:          fs,
		cfg:         cfg,
		projectPath: projectPath,
		client: &http.Client{
			Timeout:   5 * time.Second,
			Transport: &http.Transport{DisableKeepAlives: true},
		},
	}
}

// URL returns the base URL of the running server, or "" when none runs.
func (m *Manager) URL() string {
	m.outMu.Lock()
	defer m.outMu.Unlock()
	return m.url
}

// Start launches the dev server and blocks until it announces readiness and
// answers HTTP requests. On failure the process is stopped.
func (m *Manager) Start(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.cmd != nil {
		m.mu.Unlock()
		return "", ErrAlreadyRunning
	}
	m.mu.Unlock()

	argv, err := m.command()
	if err != nil {
		return "", err
	}
	if m.cfg.Install && argv[0] == "npm" {
		if err := m.install(ctx); err != nil {
			return "", err
		}
	}

	port, err := FreePort(m.cfg.StartPort)
	if err != nil {
		return "", err
	}
	if err := m.launch(argv, port); err != nil {
		return "", err
	}

	url, err := m.awaitReady(ctx)
	if err != nil {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.StopTimeout+time.Second)
		defer cancel()
		if stopErr := m.Stop(stopCtx); stopErr != nil {
			m.logger.Warn("Failed to stop dev server after a failed start.", zap.Error(stopErr))
		}
		return "", err
	}
	m.logger.Info("Dev server is ready.", zap.String("url", url))
	return url, nil
}

func (m *Manager) command() ([]string, error) {
	if fields := strings.Fields(m.cfg.Command); len(fields) > 0 {
		return fields, nil
	}
	return StartCommand(m.fs, m.projectPath, m.cfg.Script)
}

// install runs npm install when node_modules is missing.
func (m *Manager) install(ctx context.Context) error {
	if ok, _ := afero.DirExists(m.fs, filepath.Join(m.projectPath, "node_modules")); ok {
		return nil
	}
	m.logger.Info("Installing project dependencies.", zap.String("project", m.projectPath))

	cmd := exec.CommandContext(ctx, "npm", "install")
	cmd.Dir = m.projectPath
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("npm install failed: %w: %s", err, tail(out, 512))
	}
	return nil
}

func (m *Manager) launch(argv []string, port int) error {
	path, err := exec.LookPath(argv[0])
	if err != nil {
		return fmt.Errorf("dev server command %q not found: %w", argv[0], err)
	}

	// The process outlives the caller's context; Stop ends it.
	cmd := exec.Command(path, argv[1:]...)
	cmd.Dir = m.projectPath
	cmd.Env = append(cmd.Environ(),
		"PORT="+strconv.Itoa(port),
		"BROWSER=none",
		"CI=true",
	)

	m.outMu.Lock()
	m.url = fmt.Sprintf("http://localhost:%d", port)
	m.ready = make(chan struct{})
	m.isReady = false
	m.lastLine = ""
	m.outMu.Unlock()

	cmd.Stdout = &lineWriter{onLine: m.observe}
	cmd.Stderr = &lineWriter{onLine: m.observe}

	m.logger.Info("Starting dev server.",
		zap.Strings("command", argv),
		zap.Int("port", port),
		zap.String("dir", m.projectPath))
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start dev server: %w", err)
	}

	done := make(chan struct{})
	m.mu.Lock()
	m.cmd = cmd
	m.done = done
	m.waitErr = nil
	m.mu.Unlock()

	go func() {
		err := cmd.Wait()
		m.mu.Lock()
		m.waitErr = err
		m.mu.Unlock()
		close(done)
	}()
	return nil
}

// observe inspects one output line for readiness and the announced port.
func (m *Manager) observe(line string) {
	m.logger.Debug("dev server", zap.String("line", line))

	m.outMu.Lock()
	defer m.outMu.Unlock()
	if strings.TrimSpace(line) != "" {
		m.lastLine = line
	}
	if m.isReady {
		return
	}
	if match := localPattern.FindStringSubmatch(line); match != nil {
		m.url = "http://localhost:" + match[1]
	}
	for _, p := range readyPatterns {
		if p.MatchString(line) {
			m.isReady = true
			close(m.ready)
			return
		}
	}
}

func (m *Manager) awaitReady(ctx context.Context) (string, error) {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()
	m.outMu.Lock()
	ready := m.ready
	m.outMu.Unlock()

	timer := time.NewTimer(m.cfg.ReadyTimeout)
	defer timer.Stop()

	select {
	case <-ready:
	case <-done:
		return "", fmt.Errorf("dev server exited before becoming ready: %s", m.exitDetail())
	case <-timer.C:
		return "", fmt.Errorf("dev server did not become ready within %s", m.cfg.ReadyTimeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}

	url := m.URL()
	if err := m.waitHealthy(ctx, url, done); err != nil {
		return "", err
	}
	return url, nil
}

// waitHealthy polls url until it answers below 500. A 404 is fine: single
// page apps often 404 on the root of a dev server.
func (m *Manager) waitHealthy(ctx context.Context, url string, done <-chan struct{}) error {
	attempts := uint64(m.cfg.ReadyTimeout / m.cfg.PollInterval)
	if attempts < 1 {
		attempts = 1
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(m.cfg.PollInterval), attempts), ctx)

	check := func() error {
		select {
		case <-done:
			return backoff.Permanent(fmt.Errorf("dev server exited while starting: %s", m.exitDetail()))
		default:
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := m.client.Do(req)
		if err != nil {
			return err
		}
		_ = resp.Body.Close()
		if resp.StatusCode >= 500 {
			return fmt.Errorf("dev server responded with status %d", resp.StatusCode)
		}
		return nil
	}
	notify := func(err error, next time.Duration) {
		m.logger.Debug("Dev server not responding yet.", zap.String("url", url), zap.Error(err))
	}
	if err := backoff.RetryNotify(check, b, notify); err != nil {
		return fmt.Errorf("dev server at %s is not responding: %w", url, err)
	}
	return nil
}

func (m *Manager) exitDetail() string {
	m.mu.Lock()
	waitErr := m.waitErr
	m.mu.Unlock()
	m.outMu.Lock()
	last := m.lastLine
	m.outMu.Unlock()

	detail := "exit status 0"
	if waitErr != nil {
		detail = waitErr.Error()
	}
	if last != "" {
		detail += ": " + strings.TrimSpace(last)
	}
	return detail
}

// Stop terminates the dev server, first with SIGTERM and then, after the
// stop timeout, with SIGKILL. Stopping an idle manager is a no-op.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	cmd, done := m.cmd, m.done
	m.mu.Unlock()
	if cmd == nil {
		return nil
	}

	m.logger.Info("Stopping dev server.")
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		// Signals other than Kill are not supported everywhere.
		_ = cmd.Process.Kill()
	}

	timer := time.NewTimer(m.cfg.StopTimeout)
	defer timer.Stop()
	var err error
	select {
	case <-done:
	case <-timer.C:
		m.logger.Warn("Dev server ignored SIGTERM; killing it.")
		_ = cmd.Process.Kill()
		<-done
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		err = ctx.Err()
	}

	m.mu.Lock()
	m.cmd = nil
	m.done = nil
	m.mu.Unlock()
	m.outMu.Lock()
	m.url = ""
	m.outMu.Unlock()
	return err
}

// -- Output handling --

// lineWriter splits process output into lines.
type lineWriter struct {
	buf    bytes.Buffer
	onLine func(string)
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		idx := bytes.IndexByte(w.buf.Bytes(), '\n')
		if idx < 0 {
			break
		}
		line := string(w.buf.Next(idx + 1))
		w.onLine(strings.TrimRight(line, "\r\n"))
	}
	return len(p), nil
}

func tail(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		s = "..." + s[len(s)-n:]
	}
	return s
}
