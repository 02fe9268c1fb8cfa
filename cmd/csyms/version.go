package main

import (
	"fmt"
	"runtime/debug"

	"github.com/maruel/subcommands"
)

const version = "0.1.0"

func cmdVersion() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "version",
		ShortDesc: "print version info",
		LongDesc:  "Print version info.",
		CommandRun: func() subcommands.CommandRun {
			return &versionRun{}
		},
	}
}

type versionRun struct {
	subcommands.CommandRunBase
}

func (c *versionRun) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	fmt.Fprintf(a.GetOut(), "csyms version %s\n", version)
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return 0
	}
	fmt.Fprintf(a.GetOut(), "built with %s\n", info.GoVersion)
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision", "vcs.time", "vcs.modified":
			fmt.Fprintf(a.GetOut(), "%s=%s\n", s.Key, s.Value)
		}
	}
	return 0
}
