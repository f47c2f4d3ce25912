package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
)

func main() {
	args := parseArgs()
	log.SetLevel(args.LogLevel)

	log.WithField("command", args.Command).Debug("Starting...")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, args, os.Stdin, os.Stdout); err != nil {
		log.WithError(err).Fatal("failed to run")
	}
}

func run(ctx context.Context, args arguments, stdin io.Reader, stdout io.Writer) error {
	var err error
	switch args.Command {
	case "pack":
		err = pack(args, stdin, stdout)
	case "unpack":
		err = unpack(args, stdin, stdout)
	case "constants":
		err = printConstants(stdout)
	case "listeners":
		err = printListeners(args, stdout)
	case "resolve":
		err = resolve(ctx, args, stdout)
	case "nameinfo":
		err = nameInfo(ctx, args, stdout)
	case "bind":
		err = bind(args, stdout)
	case "route":
		err = route(args, stdout)
	default:
		err = fmt.Errorf("unknown command %s", args.Command)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", args.Command, err)
	}
	return nil
}
