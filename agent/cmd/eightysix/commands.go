package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/cenkalti/backoff/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/table1837/eightysix/agent/internal/config"
	"github.com/table1837/eightysix/agent/internal/shipper"
	"github.com/table1837/eightysix/agent/internal/stream"
	"github.com/table1837/eightysix/pkg/rpc"
	"github.com/table1837/eightysix/pkg/types"
)

var errNoItem = errors.New("an item name is required")

func dial(opts options, a config.AgentConfig) (*grpc.ClientConn, error) {
	opt, err := shipper.DialOption(a.TLS)
	if err != nil {
		return nil, err
	}
	return grpc.NewClient(opts.server, opt)
}

// cmdUpdate marks (out=true) or restores item, retrying while the server
// is unavailable.
func cmdUpdate(ctx context.Context, opts options, a config.AgentConfig, item string, out bool, w io.Writer) error {
	if item == "" {
		return errNoItem
	}
	u := types.Update{ItemKey: item, Status: types.StatusAvailable, ActorID: opts.actor, Reason: opts.reason}
	if out {
		u.Status = types.StatusUnavailable
	}

	conn, err := dial(opts, a)
	if err != nil {
		return err
	}
	defer conn.Close()
	client := rpc.NewClient(conn)

	rec, err := backoff.Retry(ctx, func() (types.Record, error) {
		callCtx, cancel := context.WithTimeout(ctx, opts.timeout)
		defer cancel()
		rec, err := client.Update(callCtx, opts.scope, u)
		if err != nil && status.Code(err) == codes.InvalidArgument {
			return rec, backoff.Permanent(err)
		}
		return rec, err
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(opts.tries))
	if err != nil {
		return fmt.Errorf("update %q: %w", item, err)
	}

	if opts.asJSON {
		return json.NewEncoder(w).Encode(rec)
	}
	_, err = fmt.Fprintln(w, formatEvent(opts.scope, rec, false))
	return err
}

// cmdList prints the scope's records, unavailable ones only unless -all.
func cmdList(ctx context.Context, opts options, a config.AgentConfig, w io.Writer) error {
	conn, err := dial(opts, a)
	if err != nil {
		return err
	}
	defer conn.Close()

	callCtx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()
	snap, err := rpc.NewClient(conn).Snapshot(callCtx, opts.scope)
	if err != nil {
		return fmt.Errorf("snapshot %q: %w", opts.scope, err)
	}

	records := snap.Items
	if !opts.all {
		records = unavailableOnly(records)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ItemKey < records[j].ItemKey })

	if opts.asJSON {
		if records == nil {
			records = []types.Record{}
		}
		return json.NewEncoder(w).Encode(records)
	}
	return writeTable(w, records)
}

// cmdWatch follows the realtime feed until ctx is cancelled.
func cmdWatch(ctx context.Context, opts options, a config.AgentConfig, w io.Writer) error {
	mirror := stream.NewMirror(opts.scope)
	client, err := stream.New(opts.streamURL, mirror, a.ReconnectMax)
	if err != nil {
		return err
	}
	color := isTerminal(w)
	enc := json.NewEncoder(w)

	client.OnMessage = func(msg types.Message) {
		if opts.asJSON {
			enc.Encode(msg) //nolint:errcheck
			return
		}
		if msg.Event == types.EventSnapshot {
			fmt.Fprintf(w, "-- %s: %d item(s) 86'd --\n", opts.scope, len(mirror.Unavailable()))
			writeTable(w, unavailableOnly(mirror.Records())) //nolint:errcheck
			return
		}
		var r types.Record
		if err := json.Unmarshal(msg.Data, &r); err == nil {
			fmt.Fprintln(w, formatEvent(msg.Scope, r, color))
		}
	}

	client.Run(ctx)
	return nil
}

func unavailableOnly(records []types.Record) []types.Record {
	var out []types.Record
	for _, r := range records {
		if r.Status == types.StatusUnavailable {
			out = append(out, r)
		}
	}
	return out
}
