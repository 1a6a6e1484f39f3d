package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/sealbox/sealbox/pkg/sealbox"
	"github.com/sealbox/sealbox/pkg/sealbox/backend"
	"github.com/sealbox/sealbox/pkg/sealbox/chat"
)

// app wires the config, backend client, local store, and session together for
// the commands.
type app struct {
	cfg     *config
	log     zerolog.Logger
	client  *backend.Client
	store   *backend.LevelStore
	session *sealbox.Session
}

func newApp(configPath string, verbose bool) (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}

	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	client := backend.NewClient(backend.Config{
		BaseURL:     cfg.BackendURL,
		APIKey:      cfg.APIKey,
		AccessToken: cfg.AccessToken,
		Bucket:      cfg.Bucket,
	}, log)

	store, err := backend.OpenLevelStore(filepath.Join(cfg.DataDir, "local"))
	if err != nil {
		return nil, err
	}

	session := sealbox.NewSession(cfg.UserID, client.Directory(), store, &terminalPrompter{}, log)

	return &app{
		cfg:     cfg,
		log:     log,
		client:  client,
		store:   store,
		session: session,
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn().Err(err).Msg("closing local store")
	}
}

// ready loads the key pair and republishes the public key. A failed publish
// is logged but not fatal: sending to peers with cached keys still works.
func (a *app) ready(ctx context.Context) error {
	if _, err := a.session.LoadOrCreateKeyPair(ctx); err != nil {
		return err
	}

	if err := a.session.PublishIdentity(ctx); err != nil {
		a.log.Warn().Err(err).Msg("public key publish failed; peers may not reach this identity")
	}

	return nil
}

func (a *app) messenger() *chat.Messenger {
	return chat.New(a.session, a.client, a.client, a.client, a.log)
}
