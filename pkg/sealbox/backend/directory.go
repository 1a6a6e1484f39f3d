package backend

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"

	"github.com/sealbox/sealbox/pkg/sealbox"
)

// userKeysTable holds one row per enrolled user: the published public key and,
// once created, the recovery backup.
const userKeysTable = "user_keys"

// keyRow is the read form of a user_keys row. Backup byte fields are base64.
//
// Writes use the per-operation structs below instead: merge-duplicates and
// PATCH update every column present in the payload, so a write must carry
// exactly the columns it owns and no others.
type keyRow struct {
	UserID            string `json:"user_id"`
	PublicKey         string `json:"public_key"`
	HasRecoveryBackup bool   `json:"has_recovery_backup"`
	BackupCiphertext  string `json:"backup_ciphertext"`
	BackupSalt        string `json:"backup_salt"`
	BackupIV          string `json:"backup_iv"`
	BackupIterations  int    `json:"backup_iterations"`
}

// upsertKeyRow is the payload of UpsertPublicKey. It must never carry the
// backup columns: republishing on session start would reset them.
type upsertKeyRow struct {
	UserID    string `json:"user_id"`
	PublicKey string `json:"public_key"`
}

// backupPatch is the payload of UpdateRecoveryBackup. It must never carry
// user_id or public_key: the PATCH would overwrite the published key.
type backupPatch struct {
	HasRecoveryBackup bool   `json:"has_recovery_backup"`
	BackupCiphertext  string `json:"backup_ciphertext"`
	BackupSalt        string `json:"backup_salt"`
	BackupIV          string `json:"backup_iv"`
	BackupIterations  int    `json:"backup_iterations"`
}

// Directory implements the directory service operations against the user_keys
// table.
type Directory struct {
	c *Client
}

// Directory returns the client's directory service view.
func (c *Client) Directory() *Directory {
	return &Directory{c: c}
}

// UpsertPublicKey publishes a user's public key with last-writer-wins
// semantics, inserting the row on first use.
func (d *Directory) UpsertPublicKey(ctx context.Context, userID, publicKeyExport string) error {
	q := url.Values{"on_conflict": {"user_id"}}
	row := upsertKeyRow{UserID: userID, PublicKey: publicKeyExport}
	header := http.Header{"Prefer": {"resolution=merge-duplicates"}}

	return d.c.doJSON(ctx, http.MethodPost, d.c.restURL(userKeysTable, q), row, nil, header)
}

// KeyRecord fetches a user's row, or (nil, nil) if the user never enrolled.
func (d *Directory) KeyRecord(ctx context.Context, userID string) (*sealbox.KeyRecord, error) {
	q := url.Values{
		"user_id": {"eq." + userID},
		"select":  {"*"},
	}

	var rows []keyRow
	if err := d.c.doJSON(ctx, http.MethodGet, d.c.restURL(userKeysTable, q), nil, &rows, nil); err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, nil
	}

	return rows[0].toRecord()
}

// UpdateRecoveryBackup stores the wrapped key pair and flips the backup flag
// in the same write.
func (d *Directory) UpdateRecoveryBackup(ctx context.Context, userID string, backup *sealbox.RecoveryBackup) error {
	q := url.Values{"user_id": {"eq." + userID}}
	row := backupPatch{
		HasRecoveryBackup: true,
		BackupCiphertext:  base64.StdEncoding.EncodeToString(backup.Ciphertext),
		BackupSalt:        base64.StdEncoding.EncodeToString(backup.Salt),
		BackupIV:          base64.StdEncoding.EncodeToString(backup.IV),
		BackupIterations:  backup.Iterations,
	}

	return d.c.doJSON(ctx, http.MethodPatch, d.c.restURL(userKeysTable, q), row, nil, nil)
}

// toRecord decodes a wire row into a key record.
func (r keyRow) toRecord() (*sealbox.KeyRecord, error) {
	record := &sealbox.KeyRecord{
		UserID:            r.UserID,
		PublicKeyExport:   r.PublicKey,
		HasRecoveryBackup: r.HasRecoveryBackup,
	}

	if r.BackupCiphertext == "" {
		return record, nil
	}

	ciphertext, err := base64.StdEncoding.DecodeString(r.BackupCiphertext)
	if err != nil {
		return nil, fmt.Errorf("invalid backup row for %s: %w", r.UserID, err)
	}

	salt, err := base64.StdEncoding.DecodeString(r.BackupSalt)
	if err != nil {
		return nil, fmt.Errorf("invalid backup row for %s: %w", r.UserID, err)
	}

	iv, err := base64.StdEncoding.DecodeString(r.BackupIV)
	if err != nil {
		return nil, fmt.Errorf("invalid backup row for %s: %w", r.UserID, err)
	}

	record.Backup = &sealbox.RecoveryBackup{
		Ciphertext: ciphertext,
		Salt:       salt,
		IV:         iv,
		Iterations: r.BackupIterations,
	}

	return record, nil
}

var _ sealbox.Directory = &Directory{}
