package cmd

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli"
	"github.com/warpdl/warpimport/cmd/common"
	envcfg "github.com/warpdl/warpimport/common"
	"github.com/warpdl/warpimport/pkg/credman"
	"github.com/warpdl/warpimport/pkg/credman/keyring"
	"github.com/warpdl/warpimport/pkg/logger"
)

var (
	vaultPath    string
	showPassword bool

	vaultFlags = []cli.Flag{
		cli.StringFlag{
			Name:        "vault",
			Usage:       "path of the vault database (default: <config dir>/vault.db)",
			Destination: &vaultPath,
		},
		cli.BoolFlag{
			Name:        "show-passwords",
			Usage:       "print passwords in clear text (default: false)",
			Destination: &showPassword,
		},
	}
)

type keyProvider interface {
	GetKey() ([]byte, error)
	SetKey() ([]byte, error)
}

var (
	newKeyring      = func() keyProvider { return keyring.NewKeyring() }
	newFileKeyStore = func(dir string) keyProvider { return keyring.NewFileKeyStore(dir) }
)

// loadVaultKey returns the vault key from the environment, the OS
// keyring or the key file in configDir, in that order. A key is created
// on first use, in the keyring when it is reachable.
func loadVaultKey(configDir string, log logger.Logger) ([]byte, error) {
	if keyHex := os.Getenv(envcfg.VaultKeyEnv); keyHex != "" {
		key, err := hex.DecodeString(keyHex)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", envcfg.VaultKeyEnv, err)
		}
		return key, nil
	}

	kr := newKeyring()
	key, krErr := kr.GetKey()
	if krErr == nil {
		return key, nil
	}
	if errors.Is(krErr, keyring.ErrUserDenied) {
		return nil, krErr
	}

	fks := newFileKeyStore(configDir)
	key, err := fks.GetKey()
	if err == nil {
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}
	if keyring.IsNotFound(krErr) {
		key, err := kr.SetKey()
		if err == nil {
			return key, nil
		}
		log.Warning("vault key: cannot store key in keyring: %v", err)
	} else {
		log.Warning("vault key: keyring unavailable: %v", krErr)
	}
	return fks.SetKey()
}

// openUserVault opens the vault named by --vault, or the one in
// configDir.
func openUserVault(configDir string, log logger.Logger) (*credman.Vault, error) {
	key, err := loadVaultKey(configDir, log)
	if err != nil {
		return nil, err
	}
	path := vaultPath
	if path == "" {
		path = filepath.Join(configDir, envcfg.VaultFileName)
	}
	return credman.OpenVault(path, key)
}

func vaultList(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	dir, err := envcfg.ConfigDir()
	if err != nil {
		common.PrintRuntimeErr(ctx, "vault", "config_dir", err)
		return nil
	}
	log := newLogger(dir)
	defer log.Close()
	v, err := openUserVault(dir, log)
	if err != nil {
		common.PrintRuntimeErr(ctx, "vault", "open_vault", err)
		return nil
	}
	defer v.Close()

	bg := context.Background()
	creds, err := v.Credentials(bg)
	if err != nil {
		common.PrintRuntimeErr(ctx, "vault", "credentials", err)
		return nil
	}
	folders, err := v.BookmarkFolders(bg)
	if err != nil {
		common.PrintRuntimeErr(ctx, "vault", "bookmarks", err)
		return nil
	}
	stats, err := v.Stats(bg)
	if err != nil {
		common.PrintRuntimeErr(ctx, "vault", "stats", err)
		return nil
	}
	fmt.Print(formatVault(creds, folders, stats, showPassword))
	return nil
}
