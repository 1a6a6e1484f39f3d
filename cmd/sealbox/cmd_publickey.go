package main

import (
	"context"
	"fmt"
)

type publicKeyCmd struct{}

func (cmd *publicKeyCmd) Run(app *app) error {
	if err := app.ready(context.Background()); err != nil {
		return err
	}

	fmt.Println(app.session.PublicKey())

	return nil
}
