// Command foldersync synchronizes records between data folders of a
// git-backed workbook.
package main

import (
	"os"

	"github.com/roach88/foldersync/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
