// csyms lists the declarations and macros of C source files.
package main

import (
	"io"
	"os"

	"github.com/maruel/subcommands"
	"github.com/spf13/afero"
)

// application lets tests capture the output of subcommands.
type application struct {
	*subcommands.DefaultApplication
	out io.Writer
	err io.Writer
}

func (a *application) GetOut() io.Writer { return a.out }
func (a *application) GetErr() io.Writer { return a.err }

func newApplication(fs afero.Fs, stdout, stderr io.Writer) *application {
	return &application{
		DefaultApplication: &subcommands.DefaultApplication{
			Name:  "csyms",
			Title: "C source symbol extractor",
			Commands: []*subcommands.Command{
				cmdScan(fs),
				cmdPreprocess(fs),
				cmdTokens(fs),
				cmdVersion(),
				subcommands.CmdHelp,
			},
		},
		out: stdout,
		err: stderr,
	}
}

func main() {
	os.Exit(subcommands.Run(newApplication(afero.NewOsFs(), os.Stdout, os.Stderr), nil))
}
