package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/sealbox/sealbox/pkg/sealbox/chat"
)

type sendImageCmd struct {
	Peer string `arg:"" help:"The peer's user ID."`
	Path string `arg:"" type:"existingfile" help:"The path to the image file."`
}

func (cmd *sendImageCmd) Run(app *app) error {
	ctx := context.Background()

	if err := app.ready(ctx); err != nil {
		return err
	}

	data, err := os.ReadFile(cmd.Path)
	if err != nil {
		return err
	}

	mime := http.DetectContentType(data)

	stored, err := app.messenger().SendImage(ctx, cmd.Peer, mime, data)
	if err != nil {
		if errors.Is(err, chat.ErrNotContacts) {
			return fmt.Errorf("%s has not accepted you as a contact", cmd.Peer)
		}

		return err
	}

	fmt.Printf("Sent image %d (%s, %d bytes).\n", stored.ID, mime, len(data))

	return nil
}
