package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/urfave/cli"
	"github.com/warpdl/warpimport/cmd/common"
	envcfg "github.com/warpdl/warpimport/common"
	"github.com/warpdl/warpimport/internal/dataimport"
	"github.com/warpdl/warpimport/internal/importer"
	"github.com/warpdl/warpimport/internal/profiles"
	"github.com/warpdl/warpimport/pkg/credman/keyring"
)

var (
	importSource  string
	importProfile string
	importTypes   string
	importLabel   string
	assumeYes     bool

	importFlags = []cli.Flag{
		cli.StringFlag{
			Name:        "source, s",
			Usage:       "source to import from (see the sources command)",
			Destination: &importSource,
		},
		cli.StringFlag{
			Name:        "profile, p",
			Usage:       "profile name or directory (default: the browser's default profile)",
			Destination: &importProfile,
		},
		cli.StringFlag{
			Name:        "types, t",
			Usage:       "comma separated data types to import (default: all the profile holds)",
			Destination: &importTypes,
		},
		cli.StringSliceFlag{
			Name:  "file, f",
			Usage: "exported file to use when a data type falls back to file import (repeatable)",
		},
		cli.StringFlag{
			Name:        "vault",
			Usage:       "path of the vault database (default: <config dir>/vault.db)",
			Destination: &vaultPath,
		},
		cli.StringFlag{
			Name:        "label, l",
			Usage:       "name of the folder imported bookmarks are stored in",
			Destination: &importLabel,
		},
		cli.BoolFlag{
			Name:        "yes, y",
			Usage:       "never ask; skip whatever needs an answer (default: false)",
			Destination: &assumeYes,
		},
	}
)

var (
	importIn  io.Reader = os.Stdin
	importOut io.Writer = os.Stdout
)

func runImport(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	if importSource == "" {
		return common.PrintErrWithCmdHelp(ctx, errors.New("source not specified"))
	}
	source, err := dataimport.ParseSource(importSource)
	if err != nil {
		common.PrintRuntimeErr(ctx, "import", "parse_source", err)
		return nil
	}
	info := source.MustInfo()
	types, err := parseDataTypes(importTypes)
	if err != nil {
		common.PrintRuntimeErr(ctx, "import", "parse_types", err)
		return nil
	}
	files := ctx.StringSlice("file")
	for _, f := range files {
		if err := CheckInputFile(f); err != nil {
			common.PrintRuntimeErr(ctx, "import", "input_file", err)
			return nil
		}
	}

	var profile profiles.BrowserProfile
	if info.ProfileBased() {
		loc, err := newLocator()
		if err != nil {
			common.PrintRuntimeErr(ctx, "import", "new_locator", err)
			return nil
		}
		found, err := loc.Discover(source)
		if err != nil {
			common.PrintRuntimeErr(ctx, "import", "discover", err)
			return nil
		}
		profile, err = pickProfile(found, importProfile)
		if err != nil {
			common.PrintRuntimeErr(ctx, "import", "profile", err)
			return nil
		}
	}

	dir, err := envcfg.ConfigDir()
	if err != nil {
		common.PrintRuntimeErr(ctx, "import", "config_dir", err)
		return nil
	}
	log := newLogger(dir)
	defer log.Close()
	v, err := openUserVault(dir, log)
	if err != nil {
		common.PrintRuntimeErr(ctx, "import", "open_vault", err)
		return nil
	}
	defer v.Close()
	keys, err := keyring.NewSafeStorage()
	if err != nil {
		common.PrintRuntimeErr(ctx, "import", "key_material", err)
		return nil
	}

	ui := newTerminalUI(importIn, importOut, files, assumeYes)
	bars := newProgressView(importOut)
	sess, err := importer.New(source, importer.Deps{
		Keys:          keys,
		Prompt:        ui,
		Vault:         v,
		Bookmarks:     v,
		Logger:        log,
		Progress:      bars.update,
		BookmarkLabel: importLabel,
	})
	if err != nil {
		common.PrintRuntimeErr(ctx, "import", "new_session", err)
		return nil
	}
	if info.ProfileBased() {
		if err := sess.SelectProfile(profile); err != nil {
			common.PrintRuntimeErr(ctx, "import", "select_profile", err)
			return nil
		}
		if len(types) > 0 {
			if err := sess.SelectDataTypes(types...); err != nil {
				common.PrintRuntimeErr(ctx, "import", "select_types", err)
				return nil
			}
		}
		fmt.Fprintf(importOut, "Importing from %s profile %q\n", info.Name, profile.Name)
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-sigCtx.Done():
			sess.Cancel()
		case <-done:
		}
	}()

	err = drive(sigCtx, sess, ui, bars)
	switch {
	case errors.Is(err, errStopped):
		fmt.Fprintln(importOut, "warpimport: "+err.Error())
	case err != nil:
		common.PrintRuntimeErr(ctx, "import", "run", err)
		return nil
	}
	if screen, _ := sess.Screen(); screen == importer.ScreenCancelled {
		fmt.Fprintln(importOut, "warpimport: import cancelled")
	}
	fmt.Fprint(importOut, formatResults(info.Name, sess.DataTypes(), sess.Results()))
	if report := sess.Report(); report != nil {
		fmt.Fprintln(importOut, report.Error())
	}
	return nil
}

// errStopped ends an import left on the picker after the user declined a
// password.
var errStopped = errors.New("import stopped: password declined")

// drive answers the screens of sess until it reaches a final one.
func drive(ctx context.Context, sess *importer.Session, ui *terminalUI, bars *progressView) error {
	name := sess.Source().MustInfo().Name
	attempted := false
	for {
		screen, dt := sess.Screen()
		var err error
		switch screen {
		case importer.ScreenPicker:
			if attempted && !ui.confirm("Import from "+name+" again?") {
				return errStopped
			}
			attempted = true
			err = sess.BeginImport(ctx)
			bars.finish()
		case importer.ScreenMoreInfo:
			fmt.Fprintf(ui.out, "%s did not hand out the key its passwords are encrypted with.\n", name)
			if ui.confirm("Allow access in the system keyring and try again?") {
				err = sess.BeginImport(ctx)
				bars.finish()
			} else {
				err = sess.Skip()
			}
		case importer.ScreenFileImport:
			path, ok := ui.nextFile(dt, name)
			if !ok {
				err = sess.Skip()
				break
			}
			fmt.Fprintf(ui.out, "Importing %s from %s\n", dt, filepath.Base(path))
			err = sess.ImportFile(ctx, path)
			bars.finish()
		default:
			if screen.Final() {
				return nil
			}
			return fmt.Errorf("unexpected screen %s", screen)
		}
		if err != nil {
			if errors.Is(err, importer.ErrCancelled) || ctx.Err() != nil {
				sess.Cancel()
				return nil
			}
			return err
		}
	}
}

// pickProfile selects the profile named by want (display name, directory
// name or path), or the default profile.
func pickProfile(found []profiles.BrowserProfile, want string) (profiles.BrowserProfile, error) {
	if len(found) == 0 {
		return profiles.BrowserProfile{}, errors.New("no profiles found; import an exported file instead")
	}
	if want == "" {
		if p, ok := profiles.DefaultProfile(found); ok {
			return p, nil
		}
		return found[0], nil
	}
	for _, p := range found {
		if strings.EqualFold(p.Name, want) || filepath.Base(p.Path) == want || p.Path == filepath.Clean(want) {
			return p, nil
		}
	}
	return profiles.BrowserProfile{}, fmt.Errorf("no profile named %q", want)
}

// parseDataTypes reads a comma separated list. An empty list means all.
func parseDataTypes(s string) ([]dataimport.DataType, error) {
	var out []dataimport.DataType
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		dt, err := dataimport.ParseDataType(part)
		if err != nil {
			return nil, err
		}
		out = append(out, dt)
	}
	return dataimport.SortDataTypes(out), nil
}
