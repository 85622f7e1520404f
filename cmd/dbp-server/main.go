// ABOUTME: Entry point for dbp-server, the documentation-based programming gateway
// ABOUTME: Subcommands: serve, init, health, token, audit

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/2389/dbp-gateway/internal/auth"
	"github.com/2389/dbp-gateway/internal/client"
	"github.com/2389/dbp-gateway/internal/config"
	"github.com/2389/dbp-gateway/internal/gateway"
	"github.com/2389/dbp-gateway/internal/store"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const banner = `
     _ _
  __| | |__  _ __        ___  ___ _ ____   _____ _ __
 / _' | '_ \| '_ \ _____/ __|/ _ \ '__\ \ / / _ \ '__|
| (_| | |_) | |_) |_____\__ \  __/ |   \ V /  __/ |
 \__,_|_.__/| .__/      |___/\___|_|    \_/ \___|_|
            |_|
`

func usage() {
	fmt.Println("Usage: dbp-server <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                         Start the server")
	fmt.Println("  init                          Create a new config file interactively")
	fmt.Println("  health                        Check server health and component readiness")
	fmt.Println("  token --client ID [--ttl D]   Issue a bearer token for a configured client")
	fmt.Println("  audit [--limit N] [--client ID] [--status S] [--target T]")
	fmt.Println("                                Show recent requests from the audit log")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	args := os.Args[2:]
	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	case "token":
		err = runToken(args, os.Stdout)
	case "audit":
		err = runAudit(ctx, args, os.Stdout)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (string, *config.Config, error) {
	configPath := config.DefaultPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return configPath, nil, fmt.Errorf("loading config: %w", err)
	}
	return configPath, cfg, nil
}

func runServe(ctx context.Context) error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	configPath, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Docs:      %s\n", cfg.Docs.Root)
	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.HTTPS {
			yellow.Print(" [https]")
		}
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	} else {
		green.Print("    ▶ ")
		fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
		green.Print("    ▶ ")
		if cfg.Server.GRPCAddr != "" {
			fmt.Printf("gRPC:      %s\n", cfg.Server.GRPCAddr)
		} else {
			fmt.Printf("gRPC:      disabled\n")
		}
	}
	if !cfg.Auth.IsEnabled() {
		yellow.Print("    ! ")
		fmt.Println("Authentication disabled")
	}
	fmt.Println()

	logger.Info("starting dbp-server",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"grpc_addr", cfg.Server.GRPCAddr,
		"docs_root", cfg.Docs.Root,
	)

	gw, err := gateway.New(cfg, logger, gateway.WithVersion(version))
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

func runHealth(ctx context.Context) error {
	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	c, err := client.New(client.Config{BaseURL: "http://" + cfg.Server.HTTPAddr})
	if err != nil {
		return err
	}
	if err := c.Health(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	ready, err := c.Ready(ctx)
	if err != nil {
		return fmt.Errorf("readiness check failed: %w", err)
	}
	printReady(os.Stdout, ready)
	if !ready.Ready {
		return errors.New("not ready")
	}
	return nil
}

func printReady(w io.Writer, ready *client.ReadyStatus) {
	if ready.Ready {
		color.New(color.FgGreen).Fprintln(w, "healthy")
	} else {
		color.New(color.FgYellow).Fprintln(w, "alive, not ready")
	}
	for _, c := range ready.Components {
		mark := color.GreenString("✓")
		if !c.Initialized {
			mark = color.RedString("✗")
		}
		fmt.Fprintf(w, "  %s %s\n", mark, c.Name)
	}
}

func runToken(args []string, out io.Writer) error {
	flags, err := parseFlags(args, "client", "ttl")
	if err != nil {
		return err
	}
	clientID := flags["client"]
	if clientID == "" {
		return errors.New("--client flag is required")
	}

	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ttl := cfg.Auth.TokenTTL
	if raw := flags["ttl"]; raw != "" {
		ttl, err = time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid --ttl: %w", err)
		}
	}

	token, err := issueToken(cfg, clientID, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, token)
	return nil
}

func issueToken(cfg *config.Config, clientID string, ttl time.Duration) (string, error) {
	provider, err := gateway.NewAuthProvider(cfg.Auth, setupLogger(config.LoggingConfig{Level: "error"}))
	if err != nil {
		return "", err
	}
	token, err := provider.IssueToken(clientID, ttl)
	switch {
	case errors.Is(err, auth.ErrTokensDisabled):
		return "", errors.New("auth.jwt_secret is not configured")
	case errors.Is(err, auth.ErrUnknownClient):
		return "", fmt.Errorf("client %q has no configured api key", clientID)
	case err != nil:
		return "", fmt.Errorf("issuing token: %w", err)
	}
	return token, nil
}

func runAudit(ctx context.Context, args []string, out io.Writer) error {
	flags, err := parseFlags(args, "limit", "client", "status", "target")
	if err != nil {
		return err
	}
	filter, err := auditFilter(flags)
	if err != nil {
		return err
	}

	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() { _ = s.Close() }()

	entries, err := s.ListRequestLog(ctx, filter)
	if err != nil {
		return err
	}
	printAudit(out, entries)
	return nil
}

func auditFilter(flags map[string]string) (store.RequestLogFilter, error) {
	var f store.RequestLogFilter
	if raw := flags["limit"]; raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return f, fmt.Errorf("invalid --limit %q", raw)
		}
		f.Limit = n
	} else {
		f.Limit = 20
	}
	if v := flags["client"]; v != "" {
		f.ClientID = &v
	}
	if v := flags["status"]; v != "" {
		if v != "success" && v != "error" {
			return f, fmt.Errorf("invalid --status %q (want success or error)", v)
		}
		f.Status = &v
	}
	if v := flags["target"]; v != "" {
		f.Target = &v
	}
	return f, nil
}

func printAudit(out io.Writer, entries []store.RequestLog) {
	if len(entries) == 0 {
		fmt.Fprintln(out, "no requests recorded")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tCLIENT\tKIND\tTARGET\tSTATUS\tCODE\tSTAGE\tMS")
	for _, e := range entries {
		who := e.ClientID
		if who == "" {
			who = "-"
		}
		code := e.Code
		if code == "" {
			code = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
			e.CreatedAt.Local().Format(time.DateTime),
			who, e.Kind, e.Target, e.Status, code, e.Stage, e.DurationMS)
	}
	_ = tw.Flush()
}

// parseFlags accepts "--name value" and "--name=value" for the allowed names.
func parseFlags(args []string, allowed ...string) (map[string]string, error) {
	out := make(map[string]string)

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "--") {
			return nil, fmt.Errorf("unexpected argument: %s", arg)
		}
		name, value, hasValue := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		if !slices.Contains(allowed, name) {
			return nil, fmt.Errorf("unknown flag: %s", arg)
		}
		if !hasValue {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--%s requires a value", name)
			}
			value = args[i+1]
			i++
		}
		out[name] = value
	}
	return out, nil
}
