package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/theirongolddev/bdash/internal/cli"
	"github.com/theirongolddev/bdash/internal/config"
	"github.com/theirongolddev/bdash/internal/daemon"
	"github.com/theirongolddev/bdash/internal/model"
)

var (
	flagDaemonAddr         string
	flagDaemonSchedule     string
	flagDaemonDetach       bool
	flagDaemonPIDFile      string
	flagDaemonLogFile      string
	flagDaemonEventsBuffer int
	flagDaemonChild        bool
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run a background ledger daemon with scheduled sync and HTTP/SSE endpoints",
	RunE:  runDaemon,
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon process and API status",
	RunE:  runDaemonStatus,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon",
	RunE:  runDaemonStop,
}

var daemonSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Ask the running daemon to sync now",
	RunE:  runDaemonSync,
}

func init() {
	defaultPID := filepath.Join(config.Dir(), "bdashd.pid")
	defaultLog := filepath.Join(config.Dir(), "bdashd.log")

	daemonCmd.PersistentFlags().StringVar(&flagDaemonAddr, "addr", "", "HTTP listen address (default from config)")
	daemonCmd.PersistentFlags().StringVar(&flagDaemonPIDFile, "pid-file", defaultPID, "PID file path")
	daemonCmd.PersistentFlags().StringVar(&flagDaemonLogFile, "log-file", defaultLog, "Log file path for detached mode")

	daemonCmd.Flags().StringVar(&flagDaemonSchedule, "schedule", "", "Cron spec for syncs, e.g. \"@every 15m\" (default from config)")
	daemonCmd.Flags().IntVar(&flagDaemonEventsBuffer, "events-buffer", 200, "Max in-memory events retained")
	daemonCmd.Flags().BoolVar(&flagDaemonDetach, "detach", false, "Run daemon as a background process")
	daemonCmd.Flags().BoolVar(&flagDaemonChild, "child", false, "Internal: mark detached child process")
	_ = daemonCmd.Flags().MarkHidden("child")

	daemonCmd.AddCommand(daemonStatusCmd, daemonStopCmd, daemonSyncCmd)
	rootCmd.AddCommand(daemonCmd)
}

// daemonAddr resolves --addr, then the running daemon's state file, then config.
func daemonAddr() string {
	if flagDaemonAddr != "" {
		return flagDaemonAddr
	}
	if st, err := pidFile(flagDaemonPIDFile).state(); err == nil && st.Addr != "" {
		return st.Addr
	}
	if cfg, err := loadConfig(); err == nil && cfg.Daemon.Addr != "" {
		return cfg.Daemon.Addr
	}
	return config.DefaultConfig().Daemon.Addr
}

func runDaemon(_ *cobra.Command, _ []string) error {
	if flagDaemonDetach && flagDaemonChild {
		return errors.New("invalid daemon launch mode")
	}

	if flagDaemonDetach {
		return startDaemonDetached()
	}

	return runDaemonForeground()
}

func startDaemonDetached() error {
	pf := pidFile(flagDaemonPIDFile)
	if err := pf.checkFree(); err != nil {
		return err
	}
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(flagDaemonLogFile), 0o750); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	logf, err := os.OpenFile(flagDaemonLogFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600) //nolint:gosec // path comes from --log-file
	if err != nil {
		return fmt.Errorf("open daemon log: %w", err)
	}
	defer func() { _ = logf.Close() }()

	child := exec.Command(exe, childArgs(os.Args[1:])...) //nolint:gosec // re-executes the current binary
	child.Stdout, child.Stderr = logf, logf
	child.Env = os.Environ()
	if err := child.Start(); err != nil {
		return fmt.Errorf("start detached daemon: %w", err)
	}

	for _, kv := range [][2]string{
		{"Started daemon", strconv.Itoa(child.Process.Pid)},
		{"PID file", pf.String()},
		{"API", "http://" + daemonAddr() + "/v1/status"},
		{"Log", flagDaemonLogFile},
	} {
		fmt.Println(cli.RenderKeyValue(kv[0], kv[1]))
	}
	return nil
}

func runDaemonForeground() error {
	pf := pidFile(flagDaemonPIDFile)
	if err := pf.checkFree(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	addr := flagDaemonAddr
	if addr == "" {
		addr = e.cfg.Daemon.Addr
	}
	schedule := flagDaemonSchedule
	if schedule == "" {
		schedule = e.cfg.Sync.Schedule
	}

	if err := pf.record(daemonRuntimeState{
		PID:       os.Getpid(),
		Addr:      addr,
		StartedAt: time.Now(),
		Schedule:  schedule,
	}); err != nil {
		return err
	}
	defer pf.remove()

	svc := daemon.New(daemon.Config{
		Addr:         addr,
		Schedule:     schedule,
		EventsBuffer: flagDaemonEventsBuffer,
		Capabilities: e.caps,
		Logger:       e.logger,
	}, e.ledger, e.syncer)

	fmt.Printf("  bdash daemon listening on http://%s\n", addr)
	if e.syncer != nil {
		fmt.Printf("  Syncing from SharePoint on %q\n", schedule)
	} else {
		fmt.Printf("  SharePoint sync not configured; serving the local ledger\n")
	}
	if !e.caps.HasPersistence {
		fmt.Printf("  No store configured; serving built-in sample data\n")
	}
	fmt.Printf("  Stop with: bdash daemon stop --pid-file %s\n", flagDaemonPIDFile)

	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runDaemonStatus(_ *cobra.Command, _ []string) error {
	pid, err := pidFile(flagDaemonPIDFile).pid()
	if err != nil {
		fmt.Printf("  Daemon: not running (pid file not found)\n")
		return nil
	}
	if !processAlive(pid) {
		fmt.Printf("  Daemon: stale pid file (pid %d not alive)\n", pid)
		return nil
	}

	addr := daemonAddr()
	fmt.Printf("  Daemon PID: %d\n", pid)
	fmt.Printf("  Address: http://%s\n", addr)

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + addr + "/v1/status") //nolint:noctx // short status check
	if err != nil {
		fmt.Printf("  API status: unreachable (%v)\n", err)
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		fmt.Printf("  API status: HTTP %d\n", resp.StatusCode)
		return nil
	}

	var st daemon.Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		fmt.Printf("  API status: malformed response (%v)\n", err)
		return nil
	}
	if flagJSON {
		return printJSON(st)
	}

	fmt.Printf("  Up since: %s\n", st.StartedAt.Local().Format(time.RFC3339))
	switch {
	case !st.HasRemoteSync:
		fmt.Printf("  Sync: not configured\n")
	case st.SyncRunning:
		fmt.Printf("  Sync: running (%s)\n", st.SyncSchedule)
	default:
		fmt.Printf("  Sync: idle (%s)\n", st.SyncSchedule)
	}
	if st.LastSyncAt.IsZero() {
		fmt.Printf("  Last sync: never\n")
	} else {
		fmt.Printf("  Last sync: %s (%d runs)\n", cli.FormatAgo(st.LastSyncAt, time.Now()), st.SyncCount)
	}
	if r := st.LastReport; r != nil {
		fmt.Printf("  Last report: %d fetched, %d synced, %d approved, %d errors\n",
			r.Fetched, r.Synced, r.Approved, len(r.Errors))
	}
	fmt.Printf("  Lines: %d\n", st.Summary.Lines)
	fmt.Printf("  Budget: %s, spent %s (%s)\n", st.Summary.TotalBudget, st.Summary.TotalSpent,
		cli.FormatPercent(st.Summary.Utilization))
	fmt.Printf("  Subscribers: %d, events: %d\n", st.SubscriberCount, st.EventCount)
	if !st.HasPersistence {
		fmt.Printf("  Store: sample data (not persisted)\n")
	}
	if st.LastError != "" {
		fmt.Printf("  Last error: %s\n", st.LastError)
	}
	return nil
}

func runDaemonSync(_ *cobra.Command, _ []string) error {
	addr := daemonAddr()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://"+addr+"/v1/sync", nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable at %s: %w", addr, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return fmt.Errorf("daemon sync: HTTP %d: %s", resp.StatusCode, body.Error)
	}

	var report model.SyncReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return fmt.Errorf("daemon sync: malformed response: %w", err)
	}
	if flagJSON {
		return printJSON(report)
	}
	printSyncReport(report)
	return nil
}

func runDaemonStop(_ *cobra.Command, _ []string) error {
	pf := pidFile(flagDaemonPIDFile)
	pid, err := pf.pid()
	if err != nil {
		return errors.New("daemon is not running")
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find daemon process: %w", err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal daemon process: %w", err)
	}

	deadline := time.Now().Add(8 * time.Second)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			pf.remove()
			fmt.Printf("  Stopped daemon (pid %d)\n", pid)
			return nil
		}
		time.Sleep(150 * time.Millisecond)
	}

	return fmt.Errorf("daemon (pid %d) did not exit in time", pid)
}
