package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/splax/lumia/internal/domain"
	apiclient "github.com/splax/lumia/pkg/api/client"
	"github.com/splax/lumia/pkg/config"
)

type cliConfig struct {
	DashboardURL string `json:"dashboard_url"`
}

const defaultDashboardURL = "http://localhost:3000"

var buildVersion = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "status":
		err = commandStatus(args)
	case "refresh":
		err = commandRefresh(args)
	case "metric":
		err = commandMetric(os.Stdout, args)
	case "watch":
		err = commandWatch(args)
	case "config":
		err = commandConfig(args)
	case "version", "--version", "-v":
		printVersion()
		return
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(override string) (*apiclient.Client, error) {
	base := strings.TrimSpace(override)
	if base == "" {
		base = config.GetString("LUMIA_URL", "")
	}
	if base == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		base = cfg.DashboardURL
	}
	return apiclient.New(base)
}

func commandStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	base := fs.String("url", "", "Dashboard base URL")
	asJSON := fs.Bool("json", false, "Print the raw dashboard payload")
	fs.Parse(args)

	client, err := newClient(*base)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	view, err := client.Dashboard(ctx)
	if err != nil {
		return err
	}
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}
	printStatus(os.Stdout, view, terminalWidth())
	return nil
}

func printStatus(w io.Writer, view apiclient.DashboardView, width int) {
	snap := view.Dashboard
	fmt.Fprintln(w, "Metrics")
	for _, m := range snap.Metrics {
		fmt.Fprintf(w, "  %-14s %-22s %s\n", m.Title, m.Value.String(), m.Change)
	}

	p := snap.Project
	fmt.Fprintln(w, "\nProject")
	fmt.Fprintf(w, "  deployment  %s (%s)", p.Deployment.Status, p.Deployment.Environment)
	if p.Deployment.Creator != "" {
		fmt.Fprintf(w, " by %s", p.Deployment.Creator)
	}
	fmt.Fprintln(w)
	if p.Deployment.URL != "" {
		fmt.Fprintf(w, "  url         %s\n", p.Deployment.URL)
	}
	if p.BuildTime != "" {
		fmt.Fprintf(w, "  build time  %s\n", p.BuildTime)
	}
	fmt.Fprintf(w, "  framework   %s\n  domain      %s\n  ssl valid   %t\n", p.Framework, p.Domain.Status, p.SSL.Valid)

	fmt.Fprintln(w, "\nDeployments")
	if len(snap.Deployments) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, d := range snap.Deployments {
		fmt.Fprintf(w, "  %-10s %-8s %-12s %s\n", d.ID, d.Status, d.Environment, d.CreatedAt)
	}

	f := snap.Firewall
	fmt.Fprintln(w, "\nFirewall")
	fmt.Fprintf(w, "  all %d  allowed %d  denied %d  challenged %d  logged %d  rate-limited %d\n",
		f.AllTraffic, f.Allowed, f.Denied, f.Challenged, f.Logged, f.RateLimited)

	fmt.Fprintln(w, "\nLogs")
	if len(snap.Logs) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, l := range snap.Logs {
		line := fmt.Sprintf("  %-7s %s %s", l.Type, l.Timestamp, l.Message)
		fmt.Fprintln(w, truncate(line, width))
	}
	if snap.Refreshing {
		fmt.Fprintln(w, "\n(refresh in progress)")
	}
}

func commandRefresh(args []string) error {
	fs := flag.NewFlagSet("refresh", flag.ExitOnError)
	base := fs.String("url", "", "Dashboard base URL")
	fs.Parse(args)

	client, err := newClient(*base)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	resp, err := client.Refresh(ctx)
	if err != nil {
		return err
	}
	for _, o := range resp.Outcomes {
		if o.OK {
			fmt.Printf("  %-12s ok\n", o.Source)
		} else {
			fmt.Printf("  %-12s failed: %s\n", o.Source, o.Error)
		}
	}
	printToast(os.Stdout, resp.Toast)
	return nil
}

func commandMetric(out io.Writer, args []string) error {
	fs := flag.NewFlagSet("metric", flag.ExitOnError)
	base := fs.String("url", "", "Dashboard base URL")
	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		return errors.New("usage: lumia metric <id>")
	}

	client, err := newClient(*base)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	resp, err := client.Metric(ctx, positional[0])
	if err != nil {
		return err
	}
	d := resp.Detail
	fmt.Fprintf(out, "%s\n%s\n", d.Name, strings.Repeat("=", len(d.Name)))
	if resp.Metric != nil {
		fmt.Fprintf(out, "%s: %s (%s)\n", resp.Metric.Description, resp.Metric.Value.String(), resp.Metric.Change)
	}
	fmt.Fprintf(out, "[%s]\n[%s]\n[%s]\n", d.Chart, d.AnalysisChart, d.HistoricalChart)
	for _, s := range d.Statistics {
		fmt.Fprintf(out, "  %-20s %s\n", s.Name, s.Value)
	}
	return nil
}

// parseArgs parses flags given before, between or after positional arguments.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

func commandWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	base := fs.String("url", "", "Dashboard base URL")
	fs.Parse(args)

	client, err := newClient(*base)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	fmt.Println("watching toasts, press Ctrl+C to stop")
	return client.WatchToasts(ctx, func(t domain.Toast) {
		printToast(os.Stdout, t)
	})
}

func commandConfig(args []string) error {
	if len(args) == 0 {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		fmt.Printf("dashboard_url = %s\n", cfg.DashboardURL)
		return nil
	}
	if args[0] != "set-url" || len(args) != 2 {
		return errors.New("usage: lumia config [set-url <url>]")
	}
	if _, err := apiclient.New(args[1]); err != nil {
		return err
	}
	return saveConfig(cliConfig{DashboardURL: strings.TrimSpace(args[1])})
}

func printToast(w io.Writer, t domain.Toast) {
	marker := "•"
	if t.Variant == domain.ToastDestructive {
		marker = "!"
		if isTerminal(os.Stdout) {
			marker = "\x1b[31m!\x1b[0m"
		}
	}
	stamp := ""
	if !t.CreatedAt.IsZero() {
		stamp = t.CreatedAt.Local().Format("15:04:05") + " "
	}
	fmt.Fprintf(w, "%s %s%s", marker, stamp, t.Title)
	if t.Description != "" {
		fmt.Fprintf(w, ": %s", t.Description)
	}
	fmt.Fprintln(w)
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func terminalWidth() int {
	if !isTerminal(os.Stdout) {
		return 0
	}
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 0
	}
	return width
}

// truncate shortens s to width runes; zero width means unlimited.
func truncate(s string, width int) string {
	if width <= 1 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width-1]) + "…"
}

func loadConfig() (cliConfig, error) {
	path, err := configPath()
	if err != nil {
		return cliConfig{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cliConfig{DashboardURL: defaultDashboardURL}, nil
		}
		return cliConfig{}, err
	}
	var cfg cliConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cliConfig{}, err
	}
	if cfg.DashboardURL == "" {
		cfg.DashboardURL = defaultDashboardURL
	}
	return cfg, nil
}

func saveConfig(cfg cliConfig) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func configPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "lumia", "config.json"), nil
}

func printUsage() {
	fmt.Printf("lumia CLI %s\n\n", buildVersion)
	fmt.Print(`Usage:
	lumia status [--url http://localhost:3000] [--json]
	lumia refresh [--url ...]
	lumia metric <id> [--url ...]
	lumia watch [--url ...]
	lumia config [set-url <url>]
	lumia version
`)
}

func printVersion() {
	fmt.Println(strings.TrimSpace(buildVersion))
}
