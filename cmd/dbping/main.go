// Package main implements dbping, a connectivity and schema probe for
// the sharded document store a benchmark run is about to hammer.
//
// The probe exercises every record operation once against a scratch
// key, so a misconfigured DSN, a missing table, or an engine without
// the JSON function set fails here in seconds instead of minutes into
// a workload:
//   - Insert a probe record
//   - Read it back whole and as a field subset
//   - Scan one record forward from it
//   - Update one of its fields
//   - Delete it
//
// Architecture:
//
//	┌─────────────────────────────────────────┐
//	│                dbping                   │
//	├─────────────────────────────────────────┤
//	│  One-shot mode:                         │
//	│    docsql.Client - full operation probe │
//	│  Watch mode (-watch):                   │
//	│    shard.Set     - pools per DSN        │
//	│    health.Monitor - periodic shard pings│
//	└─────────────────────────────────────────┘
//
// Configuration:
//   - DB_DRIVER: database/sql driver name (required)
//   - DB_URL: DSN, or several joined by ';' for one shard each (required)
//   - DB_USER: user spliced into DSNs lacking credentials
//   - DB_PASSWD: password spliced into DSNs lacking credentials
//   - DB_DIALECT: scan dialect override (generic, leadinglimit)
//   - DB_KEY_COLUMN: key column name (default: record_key)
//   - DB_DOC_COLUMN: document column name (default: record_doc)
//
// Example usage:
//
//	# Probe a two-shard MySQL setup once
//	DB_DRIVER=mysql \
//	DB_URL='tcp(db0:3306)/bench;tcp(db1:3306)/bench' \
//	DB_USER=bench DB_PASSWD=secret \
//	./dbping -table usertable
//
//	# Keep pinging every shard until interrupted
//	DB_DRIVER=postgres DB_URL='postgres://db0/bench' \
//	./dbping -watch -interval 5s
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/microsoft/go-mssqldb"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/ponedo/docsql"
	"github.com/ponedo/docsql/internal/health"
	"github.com/ponedo/docsql/internal/shard"
)

// envProps maps property keys to the environment variables that feed
// them.
var envProps = map[string]string{
	docsql.PropDriver:    "DB_DRIVER",
	docsql.PropURL:       "DB_URL",
	docsql.PropUser:      "DB_USER",
	docsql.PropPasswd:    "DB_PASSWD",
	docsql.PropDialect:   "DB_DIALECT",
	docsql.PropKeyColumn: "DB_KEY_COLUMN",
	docsql.PropDocColumn: "DB_DOC_COLUMN",
}

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "dbping: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	table := flag.String("table", "usertable", "record table to probe")
	key := flag.String("key", "dbping_probe", "scratch key for probe records")
	watch := flag.Bool("watch", false, "keep pinging shards until interrupted")
	interval := flag.Duration("interval", 10*time.Second, "shard ping interval in watch mode")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	level := &slog.LevelVar{}
	level.Set(slog.LevelInfo)
	if *verbose {
		level.Set(slog.LevelDebug)
	}
	log := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}))
	slog.SetDefault(log)

	props, err := buildProps()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *watch {
		return watchShards(ctx, props, *interval, log)
	}
	return probe(ctx, props, *table, *key, log)
}

// buildProps assembles the client configuration from the environment.
func buildProps() (docsql.Properties, error) {
	props := docsql.Properties{}
	for key, env := range envProps {
		if v := os.Getenv(env); v != "" {
			props[key] = v
		}
	}
	if props[docsql.PropDriver] == "" {
		return nil, errors.New("missing env DB_DRIVER")
	}
	if props[docsql.PropURL] == "" {
		return nil, errors.New("missing env DB_URL")
	}
	return props, nil
}

// probe runs one full pass over the record operations with a scratch
// key and reports each step's latency.
func probe(ctx context.Context, props docsql.Properties, table, key string, log *slog.Logger) error {
	client, err := docsql.New(docsql.Config{Props: props, Log: log})
	if err != nil {
		return err
	}
	if err := client.Init(ctx); err != nil {
		return err
	}
	defer client.Close()

	// A crashed earlier probe may have left the scratch record behind;
	// a miss here is expected.
	if err := client.Delete(ctx, table, key); err != nil && !errors.Is(err, docsql.ErrUnexpectedState) {
		return fmt.Errorf("cleanup: %w", err)
	}

	stamp := time.Now().UTC().Format(time.RFC3339Nano)
	steps := []struct {
		name string
		run  func() error
	}{
		{"insert", func() error {
			_, err := client.Insert(ctx, table, key, map[string]string{"probe": stamp, "host": hostname()})
			return err
		}},
		{"read", func() error {
			record, err := client.Read(ctx, table, key, nil)
			if err != nil {
				return err
			}
			if record["probe"] != stamp {
				return fmt.Errorf("read back %q, inserted %q", record["probe"], stamp)
			}
			return nil
		}},
		{"read subset", func() error {
			record, err := client.Read(ctx, table, key, []string{"probe"})
			if err != nil {
				return err
			}
			if record["probe"] != stamp {
				return fmt.Errorf("read back %q, inserted %q", record["probe"], stamp)
			}
			return nil
		}},
		{"scan", func() error {
			records, err := client.Scan(ctx, table, key, 1, nil)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				return errors.New("scan from probe key returned nothing")
			}
			return nil
		}},
		{"update", func() error {
			return client.Update(ctx, table, key, map[string]string{"probe": stamp + "+updated"})
		}},
		{"delete", func() error {
			return client.Delete(ctx, table, key)
		}},
	}

	for _, step := range steps {
		start := time.Now()
		if err := step.run(); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
		log.Info("step ok", "step", step.name, "elapsed", time.Since(start))
	}

	log.Info("probe ok", "table", table, "key", key)
	return nil
}

// watchShards opens the shard pools directly and pings them on an
// interval until the context is canceled.
func watchShards(ctx context.Context, props docsql.Properties, interval time.Duration, log *slog.Logger) error {
	set, err := shard.Open(ctx,
		props.GetString(docsql.PropDriver, ""),
		props.GetString(docsql.PropURL, ""),
		props.GetString(docsql.PropUser, ""),
		props.GetString(docsql.PropPasswd, ""),
		log)
	if err != nil {
		return err
	}
	defer set.Close()

	monitor := health.NewMonitor(set, interval, log)
	monitor.SetOnUnhealthy(func(index int) {
		log.Error("shard went unhealthy", "shard", index)
	})
	go monitor.Start(ctx)
	defer monitor.Stop()

	log.Info("watching shards", "shards", set.Len(), "interval", interval)
	<-ctx.Done()

	for index, record := range monitor.All() {
		log.Info("final shard status", "shard", index, "status", record.Status, "last_healthy", record.LastHealthy)
	}
	return nil
}

// hostname tags probe records so concurrent probes from different
// machines stay distinguishable.
func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}
