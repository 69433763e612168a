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
	"strings"
	"time"

	"signescrow/core/types"
	"signescrow/sdk/client"
)

const (
	defaultRPC    = "http://127.0.0.1:8545"
	rpcEnv        = "SECTL_RPC"
	tokenEnv      = "SECTL_TOKEN"
	passphraseEnv = "SECTL_PASSPHRASE"
)

type globals struct {
	endpoint string
	token    string
	timeout  time.Duration
}

func (g globals) client() (*client.Client, error) {
	var opts []client.Option
	if g.token != "" {
		opts = append(opts, client.WithBearerToken(g.token))
	}
	return client.New(g.endpoint, opts...)
}

func (g globals) context() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	if g.timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	return ctx, func() { cancel(); stop() }
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	g := globals{endpoint: defaultRPC, token: os.Getenv(tokenEnv), timeout: 30 * time.Second}
	if env := strings.TrimSpace(os.Getenv(rpcEnv)); env != "" {
		g.endpoint = env
	}
	fs := flag.NewFlagSet("sectl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&g.endpoint, "rpc", g.endpoint, "node JSON-RPC endpoint (env "+rpcEnv+")")
	fs.StringVar(&g.token, "token", g.token, "bearer token for submissions (env "+tokenEnv+")")
	fs.DurationVar(&g.timeout, "timeout", g.timeout, "request timeout; 0 disables")
	fs.Usage = func() { fmt.Fprintln(stderr, usage()) }
	if err := fs.Parse(args); err != nil {
		return 1
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fmt.Fprintln(stderr, usage())
		return 1
	}

	var err error
	switch rest[0] {
	case "keygen":
		err = runKeygen(rest[1:], stdout, stderr)
	case "address":
		err = runAddress(rest[1:], stdout, stderr)
	case "token":
		err = runToken(rest[1:], stdout, stderr)
	case "info":
		err = runInfo(g, stdout)
	case "methods":
		err = runMethods(g, stdout)
	case "nonce":
		err = runNonce(g, rest[1:], stdout)
	case "query":
		err = runQuery(g, rest[1:], stdout)
	case "invoke":
		err = runInvoke(g, rest[1:], stdout, stderr)
	case "events":
		err = runEvents(g, rest[1:], stdout, stderr)
	case "tail":
		err = runTail(g, rest[1:], stdout, stderr)
	case "help":
		fmt.Fprintln(stdout, usage())
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", rest[0])
		fmt.Fprintln(stderr, usage())
		return 1
	}
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		printError(stderr, err)
		return 1
	}
	return 0
}

func usage() string {
	return strings.Join([]string{
		"Usage: sectl [--rpc URL] [--token JWT] <command> [args]",
		"",
		"Commands:",
		"  keygen  [--keystore PATH]                         generate a signing key",
		"  address (--key HEX | --key-env VAR | --keystore PATH)",
		"  token   --secret-env VAR --subject SUB [--ttl D]  issue an RPC bearer token",
		"  info                                              network, sequence and contracts",
		"  methods                                           list invocable contract functions",
		"  nonce   ADDRESS",
		"  query   CONTRACT FUNCTION [ARGS...]",
		"  invoke  KEYFLAGS [--auth CONTRACT:FUNCTION:ARG,...] CONTRACT FUNCTION [ARGS...]",
		"  events  [--contract C] [--type T] [--tx H] [--from SEQ] [--limit N]",
		"  tail    [--contract C] [--type T]                 stream committed events",
	}, "\n")
}

func printError(w io.Writer, err error) {
	if data, ok := client.ContractError(err); ok {
		fmt.Fprintf(w, "Error: %s contract error %s (code %d)\n", data.Module, data.Name, data.Code)
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runInfo(g globals, stdout io.Writer) error {
	c, err := g.client()
	if err != nil {
		return err
	}
	ctx, cancel := g.context()
	defer cancel()
	info, err := c.Info(ctx)
	if err != nil {
		return err
	}
	return printJSON(stdout, info)
}

func runMethods(g globals, stdout io.Writer) error {
	c, err := g.client()
	if err != nil {
		return err
	}
	ctx, cancel := g.context()
	defer cancel()
	methods, err := c.Methods(ctx)
	if err != nil {
		return err
	}
	for _, m := range methods {
		kind := "invoke"
		if m.Query {
			kind = "query"
		}
		fmt.Fprintf(stdout, "%-6s %s\n", kind, m.Usage)
	}
	return nil
}

func runNonce(g globals, args []string, stdout io.Writer) error {
	if len(args) != 1 {
		return errors.New("nonce requires an address")
	}
	addr, err := types.ParsePrincipal(args[0])
	if err != nil {
		return err
	}
	c, err := g.client()
	if err != nil {
		return err
	}
	ctx, cancel := g.context()
	defer cancel()
	nonce, err := c.Nonce(ctx, addr)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, nonce)
	return nil
}

func runQuery(g globals, args []string, stdout io.Writer) error {
	if len(args) < 2 {
		return errors.New("query requires CONTRACT FUNCTION [ARGS...]")
	}
	c, err := g.client()
	if err != nil {
		return err
	}
	ctx, cancel := g.context()
	defer cancel()
	var value json.RawMessage
	if err := c.Query(ctx, args[0], args[1], args[2:], &value); err != nil {
		return err
	}
	return printJSON(stdout, value)
}
