// bimrank ranks a hotel corpus against one query from the command line and
// prints the top results, one "id<TAB>score" line each.
//
//	bimrank --dir "dataset/Hotels of Nepal" --limit 5 "lake resort"
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/Adithya-Monish-Kumar-K/hotel-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/hotel-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/hotel-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/hotel-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/hotel-search/pkg/logger"
)

type options struct {
	dir      string
	ext      string
	limit    int
	places   int
	explain  bool
	asJSON   bool
	logLevel string
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	defaults, err := config.Load("")
	if err != nil {
		return err
	}

	var opts options
	flagSet := pflag.NewFlagSet("bimrank", pflag.ContinueOnError)
	flagSet.StringVarP(&opts.dir, "dir", "d", defaults.Corpus.Dir, "directory of hotel description files")
	flagSet.StringVar(&opts.ext, "ext", defaults.Corpus.Extension, "file extension to load")
	flagSet.IntVarP(&opts.limit, "limit", "n", defaults.Search.DefaultLimit, "number of results (0 for all)")
	flagSet.IntVar(&opts.places, "places", defaults.Search.ScorePlaces, "decimal places to print scores with")
	flagSet.BoolVar(&opts.explain, "explain", false, "print per-term factors under each result")
	flagSet.BoolVar(&opts.asJSON, "json", false, "print the full result as JSON")
	flagSet.StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	flagSet.SetOutput(os.Stderr)
	flagSet.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: bimrank [flags] <query>")
		flagSet.PrintDefaults()
	}
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	logger.Setup(os.Stderr, "bimrank", opts.logLevel, "text")

	query := strings.Join(flagSet.Args(), " ")
	loader := corpus.NewDirLoader(opts.dir, opts.ext, defaults.Corpus.LoadConcurrency)
	manager := corpus.NewManager(loader, nil)
	if _, _, err := manager.Refresh(ctx); err != nil {
		return err
	}

	exec := executor.New(manager)
	var result *executor.SearchResult
	if opts.explain {
		result, err = exec.Explain(ctx, query, opts.limit)
	} else {
		result, err = exec.Execute(ctx, query, opts.limit)
	}
	if err != nil {
		return err
	}
	return render(out, result, opts)
}

func render(out io.Writer, result *executor.SearchResult, opts options) error {
	rounded := ranker.Round(result.Results, opts.places)
	if opts.asJSON {
		display := *result
		display.Results = rounded
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(&display)
	}
	for _, doc := range rounded {
		fmt.Fprintf(out, "%s\t%.*f\n", doc.DocID, opts.places, doc.Score)
		for _, part := range result.Explanations[doc.DocID] {
			fmt.Fprintf(out, "  %-20s tf=%d df=%d factor=%.6f\n", part.Term, part.TermFreq, part.DocFreq, part.Factor)
		}
	}
	return nil
}
