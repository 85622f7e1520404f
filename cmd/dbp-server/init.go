// ABOUTME: Interactive "dbp-server init" that writes a YAML config file
// ABOUTME: Generates an admin API key and optional JWT secret with crypto/rand

package main

import (
	"bufio"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"

	"github.com/2389/dbp-gateway/internal/auth"
	"github.com/2389/dbp-gateway/internal/config"
)

// initAnswers holds everything runInit asks for.
type initAnswers struct {
	HTTPAddr      string
	GRPCAddr      string
	DBPath        string
	DocsRoot      string
	Watch         bool
	AdminKey      string
	JWTSecret     string // empty disables bearer tokens
	Tailscale     bool
	TSHostname    string
	TSAuthKey     string
	TSEphemeral   bool
	LogLevel      string
	LogFormat     string
	AuthEnabled   bool
	AdminClientID string
}

// getDataPath returns the dbp data directory.
// Priority: XDG_DATA_HOME/dbp > ~/.local/share/dbp
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data"
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataDir, "dbp")
}

// randomSecret returns n random bytes, base64url encoded without padding.
func randomSecret(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func runInit() error {
	return initConfig(bufio.NewReader(os.Stdin), os.Stdout)
}

func initConfig(reader *bufio.Reader, out io.Writer) error {
	fmt.Fprintln(out, "dbp-server configuration setup")
	fmt.Fprintln(out, "==============================")
	fmt.Fprintln(out)

	outputFile := prompt(reader, out, "Config file path", config.DefaultPath())
	if _, err := os.Stat(outputFile); err == nil {
		if !yes(prompt(reader, out, "File exists. Overwrite?", "no")) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	adminKey, err := randomSecret(32)
	if err != nil {
		return err
	}

	var a initAnswers
	fmt.Fprintln(out, "\n--- Server Configuration ---")
	a.HTTPAddr = prompt(reader, out, "HTTP address", "127.0.0.1:8080")
	a.GRPCAddr = prompt(reader, out, "gRPC address ('none' disables gRPC)", "127.0.0.1:50051")
	if a.GRPCAddr == "none" {
		a.GRPCAddr = ""
	}

	fmt.Fprintln(out, "\n--- Documentation ---")
	a.DocsRoot = prompt(reader, out, "Documentation root", "./docs")
	a.Watch = yes(prompt(reader, out, "Watch for changes?", "yes"))

	fmt.Fprintln(out, "\n--- Database Configuration ---")
	a.DBPath = prompt(reader, out, "SQLite database path", filepath.Join(getDataPath(), "gateway.db"))

	fmt.Fprintln(out, "\n--- Authentication ---")
	a.AuthEnabled = yes(prompt(reader, out, "Require API keys?", "yes"))
	if a.AuthEnabled {
		a.AdminClientID = prompt(reader, out, "Admin client id", "admin")
		a.AdminKey = adminKey
		if yes(prompt(reader, out, "Enable bearer tokens?", "no")) {
			if a.JWTSecret, err = randomSecret(48); err != nil {
				return err
			}
		}
	}

	fmt.Fprintln(out, "\n--- Tailscale Configuration ---")
	a.Tailscale = yes(prompt(reader, out, "Enable Tailscale?", "no"))
	if a.Tailscale {
		a.TSHostname = prompt(reader, out, "Tailscale hostname", "dbp")
		a.TSAuthKey = prompt(reader, out, "Tailscale auth key (leave empty to use TS_AUTHKEY)", "")
		a.TSEphemeral = yes(prompt(reader, out, "Ephemeral node?", "no"))
	}

	fmt.Fprintln(out, "\n--- Logging Configuration ---")
	a.LogLevel = prompt(reader, out, "Log level (debug/info/warn/error)", config.DefaultLogLevel)
	a.LogFormat = prompt(reader, out, "Log format (text/json)", config.DefaultLogFormat)

	content := renderConfig(a)
	if err := checkConfig(content); err != nil {
		return fmt.Errorf("generated config is invalid: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outputFile), 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	// The file holds secrets.
	if err := os.WriteFile(outputFile, []byte(content), 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	dataDir := filepath.Dir(a.DBPath)
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	fmt.Fprintln(out)
	green.Fprintf(out, "  ✓ Config written to %s\n", outputFile)
	green.Fprintf(out, "  ✓ Data directory: %s\n", dataDir)
	if a.AuthEnabled {
		fmt.Fprintln(out)
		yellow.Fprintln(out, "  Admin API key (shown once, stored in the config file):")
		fmt.Fprintf(out, "    %s\n", a.AdminKey)
		fmt.Fprintf(out, "    fingerprint %s\n", auth.Fingerprint(a.AdminKey))
	}
	fmt.Fprintln(out, "\nTo start the server:")
	fmt.Fprintln(out, "  dbp-server serve")
	return nil
}

// renderConfig writes the YAML config file for a.
func renderConfig(a initAnswers) string {
	var b strings.Builder
	b.WriteString("# dbp-server configuration\n")
	b.WriteString("# Generated by dbp-server init\n\n")

	b.WriteString("server:\n")
	fmt.Fprintf(&b, "  http_addr: %q\n", a.HTTPAddr)
	fmt.Fprintf(&b, "  grpc_addr: %q\n\n", a.GRPCAddr)

	b.WriteString("database:\n")
	fmt.Fprintf(&b, "  path: %q\n\n", a.DBPath)

	b.WriteString("docs:\n")
	fmt.Fprintf(&b, "  root: %q\n", a.DocsRoot)
	fmt.Fprintf(&b, "  watch: %t\n", a.Watch)
	fmt.Fprintf(&b, "  cache_ttl: %q\n", config.DefaultCacheTTL.String())
	fmt.Fprintf(&b, "  cache_size: %d\n\n", config.DefaultCacheSize)

	b.WriteString("auth:\n")
	fmt.Fprintf(&b, "  enabled: %t\n", a.AuthEnabled)
	fmt.Fprintf(&b, "  header: %q\n", config.DefaultAPIKeyHeader)
	if a.JWTSecret != "" {
		fmt.Fprintf(&b, "  jwt_secret: %q\n", a.JWTSecret)
		fmt.Fprintf(&b, "  token_ttl: %q\n", config.DefaultTokenTTL.String())
	}
	if a.AuthEnabled {
		b.WriteString("  api_keys:\n")
		fmt.Fprintf(&b, "    - key: %q\n", a.AdminKey)
		fmt.Fprintf(&b, "      client_id: %q\n", a.AdminClientID)
		b.WriteString("      permissions: [\"*:*:*\"]\n")
	}
	b.WriteString("\n")

	b.WriteString("tailscale:\n")
	fmt.Fprintf(&b, "  enabled: %t\n", a.Tailscale)
	if a.Tailscale {
		fmt.Fprintf(&b, "  hostname: %q\n", a.TSHostname)
		if a.TSAuthKey != "" {
			fmt.Fprintf(&b, "  auth_key: %q\n", a.TSAuthKey)
		}
		fmt.Fprintf(&b, "  ephemeral: %t\n", a.TSEphemeral)
	}
	b.WriteString("\n")

	b.WriteString("logging:\n")
	fmt.Fprintf(&b, "  level: %q\n", a.LogLevel)
	fmt.Fprintf(&b, "  format: %q\n", a.LogFormat)
	return b.String()
}

func checkConfig(content string) error {
	cfg, err := config.Parse(content, false)
	if err != nil {
		return err
	}
	return cfg.Validate()
}

func yes(s string) bool {
	s = strings.ToLower(s)
	return s == "yes" || s == "y"
}

func prompt(reader *bufio.Reader, out io.Writer, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", question, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		// On EOF or error, return default
		fmt.Fprintln(out)
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
