package main

import (
	"github.com/alecthomas/kong"
)

type cli struct {
	Config  string `help:"The path to the config file." type:"path" default:"~/.sealbox/config.toml"`
	Verbose bool   `help:"Enable verbose logging."`

	Init      initCmd      `cmd:"" help:"Set up the encryption identity and recovery backup."`
	PublicKey publicKeyCmd `cmd:"" help:"Print the published public key."`
	Send      sendCmd      `cmd:"" help:"Send an encrypted text message."`
	SendImage sendImageCmd `cmd:"" help:"Send an encrypted image."`
	History   historyCmd   `cmd:"" help:"Print the conversation with a peer."`
	Listen    listenCmd    `cmd:"" help:"Print new messages from a peer as they arrive."`
	Contacts  contactsCmd  `cmd:"" help:"List peers with existing conversations."`
}

func main() {
	var cli cli

	ctx := kong.Parse(&cli)

	app, err := newApp(cli.Config, cli.Verbose)
	ctx.FatalIfErrorf(err)

	defer app.close()

	ctx.FatalIfErrorf(ctx.Run(app))
}
