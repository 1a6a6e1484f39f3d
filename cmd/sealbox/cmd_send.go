package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/sealbox/sealbox/pkg/sealbox/chat"
)

type sendCmd struct {
	Peer    string `arg:"" help:"The peer's user ID."`
	Message string `arg:"" help:"The message text."`
}

func (cmd *sendCmd) Run(app *app) error {
	ctx := context.Background()

	if err := app.ready(ctx); err != nil {
		return err
	}

	stored, err := app.messenger().SendText(ctx, cmd.Peer, cmd.Message)
	if err != nil {
		if errors.Is(err, chat.ErrNotContacts) {
			return fmt.Errorf("%s has not accepted you as a contact", cmd.Peer)
		}

		return err
	}

	fmt.Printf("Sent message %d.\n", stored.ID)

	return nil
}
