// Command recordlockd runs the record lock manager with its management API.
package main

import (
	"github.com/nimburion/recordlock/pkg/cli"
	"github.com/nimburion/recordlock/pkg/config"
)

func main() {
	cli.Execute(cli.NewRootCommand(cli.Options{
		Name:        "recordlockd",
		Description: "In-process pessimistic record locks with a management API",
		EnvPrefix:   config.DefaultEnvPrefix,
	}))
}
