package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/pkg/errors"
	"gopkg.in/urfave/cli.v1"

	"github.com/mcollard0/nixIndex/catalog"
	"github.com/mcollard0/nixIndex/index"
	"github.com/mcollard0/nixIndex/util"
)

var importCommand = cli.Command{
	Name:  "import",
	Usage: "Decode, split and index a source file into the catalog",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "file", Usage: "source file path"},
		cli.BoolFlag{Name: "stdin", Usage: "read the source from standard input"},
		cli.StringFlag{Name: "encoding", Value: "none", Usage: "encoding tag (none, gzip, base64, caesar:3, ...)"},
		cli.StringFlag{Name: "separator", Value: `\n`, Usage: "record separator; prefix with re: for a regex"},
		cli.StringFlag{Name: "chunk", Value: "64", Usage: "read chunk size (64, 1MB, 2GB; bare numbers are KiB)"},
		cli.Int64Flag{Name: "acuity", Value: 5, Usage: "minimum token occurrence count kept after import"},
		cli.StringFlag{Name: "db", Value: "nixindex.db", Usage: "catalog directory"},
	},
	Action: runImport,
}

func runImport(ctx *cli.Context) error {
	var src io.Reader
	sourcePath := ctx.String("file")
	switch {
	case ctx.Bool("stdin"):
		if sourcePath != "" {
			return errors.New("--file and --stdin are mutually exclusive")
		}
		src = os.Stdin
		sourcePath = "-"
	case sourcePath != "":
		file, err := os.Open(sourcePath)
		if err != nil {
			return errors.Wrap(err, "unable to open the source file")
		}
		defer file.Close()
		src = bufio.NewReaderSize(file, 1<<20)
	default:
		return errors.New("--file or --stdin is required")
	}

	chunkSize, err := util.ParseSize(ctx.String("chunk"))
	if err != nil {
		return errors.Wrap(err, "invalid --chunk")
	}

	cat, err := catalog.Open(ctx.String("db"), true)
	if err != nil {
		return errors.Wrap(err, "unable to open the catalog")
	}
	defer cat.Close()

	imp, err := index.NewImporter(cat, index.Options{
		Encoding:  ctx.String("encoding"),
		Separator: ctx.String("separator"),
		ChunkSize: int(chunkSize),
		Acuity:    ctx.Int64("acuity"),
	})
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sum, err := imp.Run(runCtx, src, sourcePath)
	if err != nil {
		return err
	}

	fmt.Printf("Records: %d\n", sum.Records)
	fmt.Printf("Unique tokens: %d (imported: %d, removed by acuity: %d)\n", sum.Tokens, sum.TokensImported, sum.TokensDeleted)
	fmt.Printf("Token occurrences: %d\n", sum.Occurrences)
	fmt.Printf("Elapsed: %s\n", sum.Elapsed)
	return nil
}
