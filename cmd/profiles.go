package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli"
	"github.com/warpdl/warpimport/cmd/common"
	"github.com/warpdl/warpimport/internal/dataimport"
	"github.com/warpdl/warpimport/internal/profiles"
	"golang.org/x/sync/errgroup"
)

// maxDiscovery bounds the sources scanned at once by profiles --all.
const maxDiscovery = 4

var (
	allSources bool

	profileFlags = []cli.Flag{
		cli.BoolFlag{
			Name:        "all, a",
			Usage:       "list the profiles of every installed browser (default: false)",
			Destination: &allSources,
		},
	}
)

type profileLocator interface {
	Discover(source dataimport.Source) ([]profiles.BrowserProfile, error)
}

var newLocator = func() (profileLocator, error) {
	l, err := profiles.NewLocator()
	if err != nil {
		return nil, err
	}
	return l, nil
}

func listProfiles(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	var targets []dataimport.Source
	if allSources {
		for _, s := range dataimport.AllSources() {
			if s.MustInfo().ProfileBased() {
				targets = append(targets, s)
			}
		}
	} else {
		name := ctx.Args().First()
		if name == "" {
			return common.PrintErrWithCmdHelp(ctx, errors.New("source not specified"))
		}
		s, err := dataimport.ParseSource(name)
		if err != nil {
			common.PrintRuntimeErr(ctx, "profiles", "parse_source", err)
			return nil
		}
		targets = []dataimport.Source{s}
	}
	loc, err := newLocator()
	if err != nil {
		common.PrintRuntimeErr(ctx, "profiles", "new_locator", err)
		return nil
	}
	found, err := discoverAll(loc, targets)
	if err != nil {
		common.PrintRuntimeErr(ctx, "profiles", "discover", err)
		return nil
	}
	fmt.Print(formatProfiles(targets, found, allSources))
	return nil
}

// discoverAll runs Discover for every source concurrently. found[i]
// belongs to targets[i].
func discoverAll(loc profileLocator, targets []dataimport.Source) ([][]profiles.BrowserProfile, error) {
	found := make([][]profiles.BrowserProfile, len(targets))
	var g errgroup.Group
	g.SetLimit(maxDiscovery)
	for i, s := range targets {
		g.Go(func() error {
			ps, err := loc.Discover(s)
			if err != nil {
				return fmt.Errorf("%s: %w", s, err)
			}
			found[i] = ps
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return found, nil
}

// formatProfiles renders a Discover result per source. With skipEmpty,
// sources without profiles are left out.
func formatProfiles(targets []dataimport.Source, found [][]profiles.BrowserProfile, skipEmpty bool) string {
	var b strings.Builder
	shown := 0
	for i, s := range targets {
		ps := found[i]
		if len(ps) == 0 && skipEmpty {
			continue
		}
		shown++
		fmt.Fprintf(&b, "%s (%s):\n", s.MustInfo().Name, s)
		if len(ps) == 0 {
			b.WriteString("  no profiles found\n")
			continue
		}
		for _, p := range ps {
			mark := " "
			if p.Default {
				mark = "*"
			}
			types := make([]string, 0, len(p.DataTypes))
			for _, dt := range p.DataTypes {
				types = append(types, dt.String())
			}
			fmt.Fprintf(&b, "  %s %s [%s]\n      %s\n", mark, p.Name, strings.Join(types, ","), p.Path)
		}
	}
	if shown == 0 {
		return "warpimport: no browser profiles found\n"
	}
	return b.String()
}
