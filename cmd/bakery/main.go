package main

import (
	"fmt"
	"os"

	"github.com/denismitr/bakery/internal/cli"
	"github.com/logrusorgru/aurora/v3"
)

func main() {
	cmds, err := cli.NewCommands(cli.DefaultConfigFile)
	if err != nil {
		exit(err)
	}

	if err := cmds.Parse(os.Args[1:]); err != nil {
		exit(err)
	}

	if err := cmds.Execute(os.Stdout); err != nil {
		exit(err)
	}
}

func exit(err error) {
	fmt.Fprintln(os.Stderr, aurora.Red("bakery:"), err.Error())
	os.Exit(1)
}
