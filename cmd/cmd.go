package cmd

import (
	"fmt"
	"runtime"

	"github.com/urfave/cli"
	"github.com/warpdl/warpimport/cmd/common"
)

type BuildArgs struct {
	Version   string
	BuildType string
	Date      string
	Commit    string
}

func Execute(args []string, bArgs BuildArgs) error {
	app := cli.App{
		Name:                  "warpimport",
		HelpName:              "warpimport",
		Usage:                 "Imports passwords and bookmarks from other browsers.",
		Version:               fmt.Sprintf("%s-%s", bArgs.Version, bArgs.BuildType),
		UsageText:             "warpimport <command> [arguments...]",
		Description:           DESCRIPTION,
		CustomAppHelpTemplate: HELP_TEMPL,
		OnUsageError:          common.UsageErrorCallback,
		Commands: []cli.Command{
			{
				Name:               "sources",
				Aliases:            []string{"s"},
				Usage:              "lists the supported import sources",
				Action:             sources,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Description:        SourcesDescription,
			},
			{
				Name:                   "profiles",
				Aliases:                []string{"p"},
				Usage:                  "lists the profiles of a browser",
				UsageText:              "profiles [--all] <source>",
				Action:                 listProfiles,
				OnUsageError:           common.UsageErrorCallback,
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				Description:            ProfilesDescription,
				UseShortOptionHandling: true,
				Flags:                  profileFlags,
			},
			{
				Name:                   "import",
				Aliases:                []string{"i"},
				Usage:                  "imports data from a source into the vault",
				UsageText:              "import --source <source> [options]",
				Action:                 runImport,
				OnUsageError:           common.UsageErrorCallback,
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				Description:            ImportDescription,
				UseShortOptionHandling: true,
				Flags:                  importFlags,
			},
			{
				Name:        "vault",
				Usage:       "inspects the vault",
				Description: VaultDescription,
				Subcommands: []cli.Command{
					{
						Name:         "list",
						Aliases:      []string{"l"},
						Usage:        "lists stored credentials and bookmark folders",
						Action:       vaultList,
						OnUsageError: common.UsageErrorCallback,
						Flags:        vaultFlags,
					},
				},
			},
			{
				Name:    "help",
				Aliases: []string{"h"},
				Usage:   "prints the help message",
				Action:  common.Help,
			},
			{
				Name:               "version",
				Aliases:            []string{"v"},
				Usage:              "prints installed version of warpimport",
				UsageText:          " ",
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             common.GetVersion,
			},
		},
		HideHelp:    true,
		HideVersion: true,
	}
	common.VersionCmdStr = fmt.Sprintf("%s %s (%s_%s)\nBuild: %s=%s\n",
		app.Name,
		app.Version,
		runtime.GOOS,
		runtime.GOARCH,
		bArgs.Date, bArgs.Commit,
	)
	return app.Run(args)
}
