// Command eightysix is the staff CLI for the 86 list: mark an item out,
// restore it, list what is out, or watch changes live.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/table1837/eightysix/agent/internal/config"
)

const usage = `usage: eightysix <command> [flags] [item]

commands:
  mark     86 an item:            eightysix mark -reason "out of Campari" Negroni
  restore  put an item back:      eightysix restore Negroni
  list     show the 86 list:      eightysix list [-all]
  watch    follow changes live:   eightysix watch
`

// options are the flags shared by every command.
type options struct {
	configPath string
	server     string
	streamURL  string
	scope      string
	actor      string
	reason     string
	timeout    time.Duration
	tries      uint
	all        bool
	asJSON     bool
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one CLI invocation and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	name, args := args[0], args[1:]

	var opts options
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "agent config file supplying defaults")
	fs.StringVar(&opts.server, "server", "", "gRPC endpoint (host:port)")
	fs.StringVar(&opts.streamURL, "stream", "", "realtime gateway base URL (ws://host:port)")
	fs.StringVar(&opts.scope, "scope", "", "menu scope")
	fs.StringVar(&opts.actor, "actor", "", "who is making the change (defaults to $USER)")
	fs.StringVar(&opts.reason, "reason", "", "why the item is 86'd")
	fs.DurationVar(&opts.timeout, "timeout", 0, "per-call timeout (defaults to agent.send_timeout)")
	fs.UintVar(&opts.tries, "tries", 5, "attempts before giving up on an unavailable server")
	fs.BoolVar(&opts.all, "all", false, "list: include restored items")
	fs.BoolVar(&opts.asJSON, "json", false, "print JSON instead of text")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	opts.fill(cfg.Agent)

	item := strings.TrimSpace(strings.Join(fs.Args(), " "))

	switch name {
	case "mark", "86":
		err = cmdUpdate(ctx, opts, cfg.Agent, item, true, stdout)
	case "restore":
		err = cmdUpdate(ctx, opts, cfg.Agent, item, false, stdout)
	case "list", "ls":
		err = cmdList(ctx, opts, cfg.Agent, stdout)
	case "watch":
		err = cmdWatch(ctx, opts, cfg.Agent, stdout)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", name, usage)
		return 2
	}
	if err != nil {
		fmt.Fprintln(stderr, "eightysix:", err)
		return 1
	}
	return 0
}

// fill copies config values into options the user did not set.
func (o *options) fill(a config.AgentConfig) {
	if o.server == "" {
		o.server = a.ServerEndpoint
	}
	if o.streamURL == "" {
		o.streamURL = a.StreamURL
	}
	if o.scope == "" {
		o.scope = a.Scope
	}
	if o.actor == "" {
		o.actor = a.StationID
	}
	if o.actor == "" {
		o.actor = os.Getenv("USER")
	}
	if o.timeout <= 0 {
		o.timeout = a.SendTimeout
	}
	if o.tries == 0 {
		o.tries = 1
	}
}
