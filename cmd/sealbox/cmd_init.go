package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sealbox/sealbox/pkg/sealbox"
)

type initCmd struct{}

func (cmd *initCmd) Run(app *app) error {
	ctx := context.Background()

	// Load or establish the key pair, restoring from backup if possible.
	source, err := app.session.LoadOrCreateKeyPair(ctx)
	if err != nil {
		return err
	}

	switch source {
	case sealbox.KeySourceLocal:
		fmt.Println("Using the existing key pair on this device.")
	case sealbox.KeySourceRestored:
		fmt.Println("Key pair restored from the recovery backup.")
	case sealbox.KeySourceGenerated:
		fmt.Println("Generated a fresh key pair.")

		// If a backup existed but was not (or could not be) restored, the old
		// identity is gone for good.
		record, err := app.client.Directory().KeyRecord(ctx, app.cfg.UserID)
		if err == nil && record != nil && record.HasRecoveryBackup {
			fmt.Fprintln(os.Stderr, "Warning: messages encrypted under the previous identity are no longer readable.")
		}
	}

	// Publish the public key so peers can encrypt to this identity.
	if err := app.session.PublishIdentity(ctx); err != nil {
		return err
	}

	// Run the one-time recovery backup flow.
	if err := app.session.EnsureRecoveryBackup(ctx); err != nil {
		if errors.Is(err, sealbox.ErrBackupDeclined) {
			fmt.Fprintln(os.Stderr, "No backup created; run init again when ready to record the secret.")
			return nil
		}

		return err
	}

	fmt.Printf("Identity ready: %s\n", app.session.PublicKey())

	return nil
}
