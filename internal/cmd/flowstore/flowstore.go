// Package flowstore parses CLI flags and runs the flowstore subcommands.
package flowstore

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/goliatone/go-flowstore/pkg/commands"
	"github.com/goliatone/go-flowstore/pkg/config"
	"github.com/goliatone/go-flowstore/pkg/interfaces/logger"
	"github.com/goliatone/go-flowstore/pkg/retry"
	"github.com/goliatone/go-flowstore/pkg/server"
	"github.com/goliatone/go-flowstore/pkg/storage"
	"github.com/goliatone/go-flowstore/pkg/store"
)

// ErrKeyNotFound is returned by get when the key was never written.
var ErrKeyNotFound = errors.New("flowstore: key not found")

const usage = `usage: flowstore <command> [flags]

commands:
  serve                  run the reference store-entries server
  get <key>              print the JSON value stored at key
  put <key> <json>       store a JSON value at key
  delete <key>           remove key
`

// Run executes the subcommand in args.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return errors.New("flowstore: command is required")
	}

	cfg, err := config.Load(config.Defaults(), config.WithEnv())
	if err != nil {
		return err
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "serve":
		return runServe(ctx, cfg, rest, stderr)
	case "get", "put", "delete":
		return runEntry(ctx, cmd, cfg, rest, stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("flowstore: unknown command %q", cmd)
	}
}

func runServe(ctx context.Context, cfg config.Config, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	tokens := strings.Join(cfg.Server.Tokens, ",")
	fs.StringVar(&cfg.Server.Addr, "addr", cfg.Server.Addr, "Listen address")
	fs.StringVar(&cfg.Server.PathPrefix, "path-prefix", cfg.Server.PathPrefix, "Mount the API under this path")
	fs.StringVar(&tokens, "tokens", tokens, "Comma separated engine tokens accepted by the server")
	fs.StringVar(&cfg.Storage.Backend, "backend", cfg.Storage.Backend, "Storage backend: memory, sqlite or bolt")
	fs.StringVar(&cfg.Storage.Location, "location", cfg.Storage.Location, "SQLite DSN or bolt file path")
	fs.StringVar(&cfg.Logging.Level, "log-level", cfg.Logging.Level, "Log level")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg.Server.Tokens = splitTokens(tokens)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if len(cfg.Server.Tokens) == 0 {
		return errors.New("flowstore: at least one server token is required")
	}

	lgr := logger.New(stderr, logger.ParseLevel(cfg.Logging.Level))
	providers, err := storage.Open(ctx, cfg.Storage.Backend, cfg.Storage.Location)
	if err != nil {
		return err
	}
	defer providers.Close()

	handler, err := server.New(providers.Entries,
		server.WithTokenVerifier(server.StaticTokens(cfg.Server.Tokens)),
		server.WithLogger(lgr),
		server.WithPathPrefix(cfg.Server.PathPrefix),
	)
	if err != nil {
		return err
	}
	lgr.Info("storage backend ready", logger.Field{Key: "backend", Value: cfg.Storage.Backend})
	return server.Run(ctx, cfg.Server.Addr, handler, lgr)
}

func runEntry(ctx context.Context, cmd string, cfg config.Config, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)
	scopeName := fs.String("scope", "FLOW", "Key scope: FLOW or PROJECT")
	fs.StringVar(&cfg.Client.APIURL, "api-url", cfg.Client.APIURL, "Engine API base URL")
	fs.StringVar(&cfg.Client.Prefix, "prefix", cfg.Client.Prefix, "Key prefix")
	fs.StringVar(&cfg.Client.FlowID, "flow-id", cfg.Client.FlowID, "Flow identity for FLOW scoped keys")
	fs.StringVar(&cfg.Client.EngineToken, "token", cfg.Client.EngineToken, "Engine bearer token")
	fs.DurationVar(&cfg.Client.Timeout, "timeout", cfg.Client.Timeout, "Per request timeout, 0 disables the deadline")
	fs.IntVar(&cfg.Retry.MaxAttempts, "attempts", cfg.Retry.MaxAttempts, "Attempts for retryable failures")
	fs.StringVar(&cfg.Logging.Level, "log-level", cfg.Logging.Level, "Log level")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	positional := fs.Args()
	want := 1
	if cmd == "put" {
		want = 2
	}
	if len(positional) != want {
		return fmt.Errorf("flowstore: %s expects %d argument(s), got %d", cmd, want, len(positional))
	}
	scope, err := store.ParseScope(*scopeName)
	if err != nil {
		return err
	}

	lgr := logger.New(stderr, logger.ParseLevel(cfg.Logging.Level))
	st, err := store.NewContextStore(store.ContextConfig{
		APIURL:      cfg.Client.APIURL,
		Prefix:      cfg.Client.Prefix,
		FlowID:      cfg.Client.FlowID,
		EngineToken: cfg.Client.EngineToken,
	},
		store.WithContextLogger(lgr),
		store.WithClientOptions(store.WithUserAgent("flowstore-cli")),
	)
	if err != nil {
		return err
	}
	registry, err := commands.New(commands.Dependencies{Store: st, Logger: lgr})
	if err != nil {
		return err
	}

	backoff := retry.ExponentialBackoff{Base: cfg.Retry.BaseDelay, Max: cfg.Retry.MaxDelay}
	attempt := func(fn func(ctx context.Context) error) error {
		return retry.Do(ctx, cfg.Retry.MaxAttempts, backoff, store.IsRetryable, func(ctx context.Context) error {
			callCtx, cancel := withCallTimeout(ctx, cfg.Client.Timeout)
			defer cancel()
			return fn(callCtx)
		})
	}

	key := positional[0]
	switch cmd {
	case "get":
		var raw json.RawMessage
		var found bool
		err := attempt(func(ctx context.Context) error {
			var err error
			raw, found, err = st.Lookup(ctx, key, scope)
			return err
		})
		if err != nil {
			return err
		}
		if !found {
			return ErrKeyNotFound
		}
		_, err = fmt.Fprintln(stdout, string(raw))
		return err
	case "put":
		return attempt(func(ctx context.Context) error {
			return registry.PutEntry.Execute(ctx, commands.PutEntry{
				Key:   key,
				Value: json.RawMessage(positional[1]),
				Scope: scope.String(),
			})
		})
	default:
		return attempt(func(ctx context.Context) error {
			return registry.DeleteEntry.Execute(ctx, commands.DeleteEntry{Key: key, Scope: scope.String()})
		})
	}
}

// withCallTimeout bounds a single store call. A zero timeout leaves ctx as is.
func withCallTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func splitTokens(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
