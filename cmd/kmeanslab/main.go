// Command kmeanslab serves interactive k-means sessions over HTTP and
// clusters CSV files from the command line.
//
// Usage:
//
//	kmeanslab serve [-config file] [-env file] [-addr :8080]
//	kmeanslab cluster -input points.csv [-k 3] [-init kmeans++] [-max-iter 100] [-seed N] [-step] [-plot out.html]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

const usage = `usage: kmeanslab <command> [flags]

commands:
  serve     run the HTTP service
  cluster   cluster the rows of a CSV file

run "kmeanslab <command> -h" for the flags of a command`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "kmeanslab:", err)
		}
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, usage)
		return flag.ErrHelp
	}

	switch args[0] {
	case "serve":
		return serve(ctx, args[1:])
	case "cluster":
		return cluster(ctx, args[1:], os.Stdout)
	case "-h", "-help", "--help", "help":
		fmt.Fprintln(os.Stderr, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
}
