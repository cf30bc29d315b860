package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/pkg/errors"
	"gopkg.in/urfave/cli.v1"

	"github.com/mcollard0/nixIndex/catalog"
	"github.com/mcollard0/nixIndex/search"
)

// defaultDisplayLimit and displayTruncate keep huge result sets readable on a
// terminal; the full bytes are always materialized, only the printout is
// clipped.
const (
	defaultDisplayLimit = 10
	displayTruncate     = 500
)

var searchCommand = cli.Command{
	Name:  "search",
	Usage: "Find the records containing a term",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "term", Usage: "search term (single token)"},
		cli.StringFlag{Name: "db", Value: "nixindex.db", Usage: "catalog directory"},
		cli.StringFlag{Name: "file", Usage: "read the source from this path instead of the imported one"},
		cli.IntFlag{Name: "limit", Value: defaultDisplayLimit, Usage: "maximum records to display"},
	},
	Action: runSearch,
}

func runSearch(ctx *cli.Context) error {
	term := ctx.String("term")
	if term == "" {
		return errors.New("--term is required")
	}

	cat, err := catalog.Open(ctx.String("db"), false)
	if err != nil {
		return errors.Wrap(err, "unable to open the catalog")
	}
	defer cat.Close()
	if cat.Stats().Records == 0 {
		return errors.New("catalog is empty; run import first")
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results, report, err := search.New(cat).Search(runCtx, term, ctx.String("file"))
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Printf("No results found (%s)\n", report.Elapsed)
		return nil
	}

	limit := ctx.Int("limit")
	displayed := 0
	for _, res := range results {
		if limit > 0 && displayed >= limit {
			break
		}
		displayed++
		fmt.Printf("--- Records %v [%d:%d] ---\n", res.Records, res.Start, res.End)
		data := res.Data
		if len(data) > displayTruncate {
			fmt.Printf("%s...\n", data[:displayTruncate])
		} else {
			fmt.Printf("%s\n", data)
		}
	}
	if report.Results > displayed {
		fmt.Printf("... and %d more results\n", report.Results-displayed)
	}
	fmt.Printf("%d results in %s\n", report.Results, report.Elapsed)
	return nil
}
