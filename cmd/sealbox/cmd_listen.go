package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/sealbox/sealbox/pkg/sealbox/chat"
)

type listenCmd struct {
	Peer string `arg:"" help:"The peer's user ID."`
}

func (cmd *listenCmd) Run(app *app) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := app.ready(ctx); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Listening for messages from %s; interrupt to stop.\n", cmd.Peer)

	out := make(chan chat.DisplayMessage, 16)

	done := make(chan error, 1)
	go func() { done <- app.messenger().Listen(ctx, cmd.Peer, out) }()

	for {
		select {
		case m := <-out:
			printMessage(m, "")

		case err := <-done:
			if errors.Is(err, context.Canceled) {
				return nil
			}

			return err
		}
	}
}
