package cmd

import (
	"fmt"
	"strings"

	"github.com/urfave/cli"
	"github.com/warpdl/warpimport/cmd/common"
	"github.com/warpdl/warpimport/internal/dataimport"
)

func sources(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	txt := "Supported sources:"
	txt += "\n\n-----------------------------------------------------------------------"
	txt += "\n|   Identifier   |         Name         |   Kind   |       Data        |"
	txt += "\n|----------------|----------------------|----------|-------------------|"
	for _, s := range dataimport.AllSources() {
		info := s.MustInfo()
		kind := "profile"
		if !info.ProfileBased() {
			kind = "file"
		}
		types := make([]string, 0, len(info.DataTypes))
		for _, dt := range dataimport.SortDataTypes(info.DataTypes) {
			types = append(types, dt.String())
		}
		txt += fmt.Sprintf("\n|%s|%s|%s|%s|",
			common.Fit(string(s), 16),
			common.Fit(info.Name, 22),
			common.Beaut(kind, 10),
			common.Fit(strings.Join(types, ","), 19),
		)
	}
	txt += "\n-----------------------------------------------------------------------"
	fmt.Println(txt)
	return nil
}
