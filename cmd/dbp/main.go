// ABOUTME: dbp command-line client for dbp-server
// ABOUTME: Runs tools, fetches resources, and lists handlers over HTTP, SSE, or gRPC

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/2389/dbp-gateway/internal/client"
	"github.com/2389/dbp-gateway/internal/mcp"
)

const defaultServer = "http://127.0.0.1:8080"

// exitError carries a process exit code without an extra message; the
// command already printed what went wrong.
type exitError int

func (e exitError) Error() string  { return fmt.Sprintf("exit status %d", int(e)) }
func (e exitError) ExitCode() int { return int(e) }

// options are the parsed global flags.
type options struct {
	server  string
	apiKey  string
	token   string
	header  string
	grpc    string
	data    string
	format  string
	limit   int
	json    bool
	stream  bool
	timeout time.Duration
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr, os.Getenv); err != nil {
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newFlagSet(opts *options, getenv func(string) string) *pflag.FlagSet {
	server := getenv("DBP_SERVER")
	if server == "" {
		server = defaultServer
	}

	flagSet := pflag.NewFlagSet("dbp", pflag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.StringVarP(&opts.server, "server", "s", server, "server base URL (env DBP_SERVER)")
	flagSet.StringVarP(&opts.apiKey, "api-key", "k", getenv("DBP_API_KEY"), "API key (env DBP_API_KEY)")
	flagSet.StringVar(&opts.token, "token", getenv("DBP_TOKEN"), "bearer token instead of an API key (env DBP_TOKEN)")
	flagSet.StringVar(&opts.header, "header", client.DefaultHeader, "API key header name")
	flagSet.StringVar(&opts.grpc, "grpc", "", "send tool and resource requests over gRPC to this address")
	flagSet.StringVarP(&opts.data, "data", "d", "", "request data as a JSON object")
	flagSet.StringVar(&opts.format, "format", "", "documentation format: markdown or html")
	flagSet.IntVarP(&opts.limit, "limit", "n", 0, "maximum matches for query")
	flagSet.BoolVar(&opts.json, "json", false, "print raw JSON")
	flagSet.BoolVar(&opts.stream, "stream", false, "stream progress events (HTTP only)")
	flagSet.DurationVar(&opts.timeout, "timeout", 60*time.Second, "request timeout")
	flagSet.BoolP("help", "h", false, "show help")
	return flagSet
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) error {
	var opts options
	flagSet := newFlagSet(&opts, getenv)
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(stdout, flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(stdout, flagSet)
		return nil
	}

	rest := flagSet.Args()
	if len(rest) == 0 {
		printHelp(stderr, flagSet)
		return exitError(2)
	}

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	c, err := client.New(client.Config{
		BaseURL:     opts.server,
		APIKey:      opts.apiKey,
		Header:      opts.header,
		BearerToken: opts.token,
	})
	if err != nil {
		return err
	}
	out := &printer{w: stdout, json: opts.json}

	cmd, cmdArgs := rest[0], rest[1:]
	switch cmd {
	case "query":
		if len(cmdArgs) == 0 {
			return errors.New("usage: dbp query TEXT")
		}
		data := map[string]any{"query": strings.Join(cmdArgs, " ")}
		if opts.limit > 0 {
			data["limit"] = opts.limit
		}
		resp, err := send(ctx, c, &opts, mcp.Request{Kind: mcp.KindTool, Target: "dbp_general_query", Payload: data}, out)
		if err != nil {
			return err
		}
		return out.query(resp)

	case "tool", "resource":
		if len(cmdArgs) != 1 {
			return fmt.Errorf("usage: dbp %s NAME", cmd)
		}
		data, err := parseData(opts.data)
		if err != nil {
			return err
		}
		if opts.format != "" {
			if data == nil {
				data = map[string]any{}
			}
			data["format"] = opts.format
		}
		kind := mcp.KindTool
		if cmd == "resource" {
			kind = mcp.KindResource
		}
		resp, err := send(ctx, c, &opts, mcp.Request{Kind: kind, Target: cmdArgs[0], Payload: data}, out)
		if err != nil {
			return err
		}
		return out.response(resp)

	case "tools":
		list, err := c.Tools(ctx)
		if err != nil {
			return err
		}
		return out.descriptors(list)

	case "resources":
		list, err := c.Resources(ctx)
		if err != nil {
			return err
		}
		return out.descriptors(list)

	case "health":
		if err := c.Health(ctx); err != nil {
			return err
		}
		ready, err := c.Ready(ctx)
		if err != nil {
			return err
		}
		return out.ready(ready)

	default:
		return fmt.Errorf("unknown command %q (run dbp --help)", cmd)
	}
}

// parseData decodes the --data flag. Empty means no payload.
func parseData(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("--data must be a JSON object: %w", err)
	}
	return data, nil
}

// send delivers req over gRPC, SSE, or plain HTTP depending on the flags.
func send(ctx context.Context, c *client.Client, opts *options, req mcp.Request, out *printer) (mcp.Response, error) {
	switch {
	case opts.grpc != "":
		return sendGRPC(ctx, opts, req)
	case opts.stream:
		return c.Stream(ctx, req, out.progress)
	default:
		return c.Call(ctx, req)
	}
}

func sendGRPC(ctx context.Context, opts *options, req mcp.Request) (mcp.Response, error) {
	conn, err := grpc.NewClient(opts.grpc, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return mcp.Response{}, fmt.Errorf("connecting to %s: %w", opts.grpc, err)
	}
	defer func() { _ = conn.Close() }()

	if opts.apiKey != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, strings.ToLower(opts.header), opts.apiKey)
	}
	if opts.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+opts.token)
	}
	return mcp.NewGRPCClient(conn).Handle(ctx, req)
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `dbp - client for dbp-server

Usage:
  dbp [flags] <command> [args]

Commands:
  query TEXT          Ask the documentation coordinator
  tool NAME           Execute a tool (payload from --data)
  resource TARGET     Get a resource, e.g. documentation/guide.md
  tools               List the tools you may execute
  resources           List the resources you may get
  health              Check server liveness and readiness

Examples:
  dbp query how does authentication work
  dbp tool dbp_analyze_consistency --stream
  dbp tool dbp_apply_recommendation -d '{"id":"...","decision":"accept"}'
  dbp resource documentation/README.md --format html

Flags:
%s`, flagSet.FlagUsages())
}
