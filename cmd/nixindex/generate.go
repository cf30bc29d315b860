package main

import (
	"fmt"

	"github.com/pkg/errors"
	"gopkg.in/urfave/cli.v1"

	"github.com/mcollard0/nixIndex/gen"
	"github.com/mcollard0/nixIndex/util"
)

var generateCommand = cli.Command{
	Name:  "generate",
	Usage: "Build an encoded test fixture by repeating a payload to a target size",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "url", Usage: "download the payload from this URL"},
		cli.StringFlag{Name: "file", Usage: "read the payload from this file"},
		cli.StringFlag{Name: "encoding", Value: "none", Usage: "encoding to apply to the payload"},
		cli.StringFlag{Name: "target-size", Value: "100GB", Usage: "size to repeat the payload up to"},
		cli.StringFlag{Name: "output", Usage: "output path (a temp file is used when omitted)"},
	},
	Action: runGenerate,
}

func runGenerate(ctx *cli.Context) error {
	if ctx.String("url") != "" && ctx.String("file") != "" {
		return errors.New("--url and --file are mutually exclusive")
	}
	targetSize, err := util.ParseSize(ctx.String("target-size"))
	if err != nil {
		return errors.Wrap(err, "invalid --target-size")
	}

	path, written, err := gen.Generate(gen.Options{
		URL:        ctx.String("url"),
		File:       ctx.String("file"),
		Encoding:   ctx.String("encoding"),
		TargetSize: targetSize,
		Output:     ctx.String("output"),
	})
	if err != nil {
		return err
	}
	fmt.Printf("Generated %s (%s)\n", path, util.FormatSize(written))
	return nil
}
