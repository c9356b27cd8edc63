// Command jobsctl inspects and drives the background job queue.
//
//	jobsctl stats
//	jobsctl trigger sessions:purge
//	jobsctl replay-audit [-n 100]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/marketai/marketai-admin/internal/platform/cache"
)

func main() {
	_ = godotenv.Load()
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "127.0.0.1:6379"
	}
	cli := NewJobsCLI(cache.Options{Addr: redisAddr, Password: os.Getenv("REDIS_PASSWORD")}.AsynqOpt())
	defer cli.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := run(ctx, cli, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "jobsctl:", err)
		os.Exit(1)
	}
}

var errUsage = errors.New("usage: jobsctl stats | trigger <job> | replay-audit [-n size]")

func run(ctx context.Context, cli *JobsCLI, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "stats":
		stats, err := cli.InspectQueue()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
	case "trigger":
		if len(args) < 2 {
			return errUsage
		}
		info, err := cli.Trigger(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "enqueued %s id=%s\n", info.Type, info.ID)
	case "replay-audit":
		fs := flag.NewFlagSet("replay-audit", flag.ContinueOnError)
		fs.SetOutput(out)
		size := fs.Int("n", 100, "maximum archived tasks to inspect")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		n, err := cli.ReplayAudit(*size)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "replayed %d audit tasks\n", n)
	default:
		return errUsage
	}
	return nil
}
