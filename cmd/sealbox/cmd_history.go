package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sealbox/sealbox/pkg/sealbox/chat"
)

type historyCmd struct {
	Peer string `arg:"" help:"The peer's user ID."`

	SaveImages string `type:"existingdir" help:"Write received images into this directory."`
}

func (cmd *historyCmd) Run(app *app) error {
	ctx := context.Background()

	if err := app.ready(ctx); err != nil {
		return err
	}

	msgs, err := app.messenger().History(ctx, cmd.Peer)
	if err != nil {
		return err
	}

	for _, m := range msgs {
		printMessage(m, cmd.SaveImages)
	}

	return nil
}

func printMessage(m chat.DisplayMessage, saveDir string) {
	stamp := m.SentAt.Local().Format("2006-01-02 15:04")

	switch m.Kind {
	case chat.KindText:
		fmt.Printf("%s  %s: %s\n", stamp, m.SenderID, m.Text)

	case chat.KindImage:
		fmt.Printf("%s  %s: [image %s, %d bytes]\n", stamp, m.SenderID, m.MIME, len(m.Image))

		if saveDir != "" {
			path := filepath.Join(saveDir, fmt.Sprintf("%d%s", m.ID, extensionFor(m.MIME)))
			if err := os.WriteFile(path, m.Image, 0o600); err != nil {
				fmt.Fprintf(os.Stderr, "could not save image %d: %v\n", m.ID, err)
			}
		}

	case chat.KindBrokenImage:
		fmt.Printf("%s  %s: [image unavailable]\n", stamp, m.SenderID)
	}
}

func extensionFor(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}
