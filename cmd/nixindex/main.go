// Copyright (C) 2016  Lukas Lalinsky
// Distributed under the MIT license, see the LICENSE file for details.

package main

import (
	"fmt"
	"os"

	"gopkg.in/urfave/cli.v1"
)

func main() {
	app := cli.NewApp()
	app.Name = "nixindex"
	app.HelpName = os.Args[0]
	app.Usage = "indexed whole-word search over large encoded record files"
	app.HideVersion = true
	app.Commands = []cli.Command{
		importCommand,
		searchCommand,
		generateCommand,
	}
	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
