package main

import (
	"context"
	"fmt"
)

type contactsCmd struct{}

func (cmd *contactsCmd) Run(app *app) error {
	ctx := context.Background()

	if err := app.ready(ctx); err != nil {
		return err
	}

	peers, err := app.messenger().Contacts(ctx)
	if err != nil {
		return err
	}

	for _, peer := range peers {
		fmt.Println(peer)
	}

	return nil
}
