// Command asconv converts airspace files between the OpenAir and Cenfis
// binary airspace formats, with an optional local decode cache. Unlike
// tpconv, asconv has no filter chain: the original asconv.cc never
// parses a -F option either.
//
// Usage:
//
//	asconv [options] FILE1 ...
//
// Options:
//
//	-o FILENAME    write output to this file
//	-f FORMAT      write output to stdout in this format
//	-catalog PATH  cache decoded airspace sets in a local SQLite file
//	-v             verbose: log each input file name before converting
//	-q             quiet: suppress the summary line
//	-h             help (this text)
//
// asconv -catalog PATH alone, with no input files, lists that catalog's
// cached entries instead of converting anything.
//
// Grounded on original_source/tp-conv.cc's main() (asconv.cc shares the
// same driver shape minus -F) and the teacher's cmd/acars_parser/main.go
// CLI idiom.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	isatty "github.com/mattn/go-isatty"

	"loggertoolsgo/internal/catalog"
	"loggertoolsgo/internal/convert"
	"loggertoolsgo/internal/domain"
	"loggertoolsgo/internal/formats/cenfisairspace"
	"loggertoolsgo/internal/formats/openair"
	"loggertoolsgo/internal/pipeline"
)

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: asconv [options] FILE1 ...")
	fmt.Fprintln(w, "options:")
	fmt.Fprintln(w, " -o FILENAME    write output to this file")
	fmt.Fprintln(w, " -f FORMAT      write output to stdout with this format")
	fmt.Fprintln(w, " -catalog PATH  cache decoded airspaces in a local SQLite file")
	fmt.Fprintln(w, " -v             verbose output")
	fmt.Fprintln(w, " -q             quiet: no summary line")
	fmt.Fprintln(w, " -h             help (this text)")
}

func newRegistry() *pipeline.Registry[domain.Airspace] {
	reg := pipeline.NewRegistry[domain.Airspace]()
	openair.Register(reg)
	cenfisairspace.Register(reg)
	return reg
}

func bindCatalog(c *catalog.Catalog) (func(string) ([]domain.Airspace, bool, error), func(string, []domain.Airspace) error) {
	return c.LookupAirspaces, c.StoreAirspaces
}

func main() {
	fs := flag.NewFlagSet("asconv", flag.ContinueOnError)
	fs.Usage = func() { usage(os.Stderr) }

	outPath := fs.String("o", "", "write output to this file")
	stdoutFormat := fs.String("f", "", "write output to stdout with this format")
	catalogPath := fs.String("catalog", "", "cache decoded airspaces in a local SQLite file")
	verbose := fs.Bool("v", false, "verbose output")
	quiet := fs.Bool("q", false, "quiet: no summary line")

	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}

	logger := log.New(os.Stderr, "asconv: ", 0)
	colorize := isatty.IsTerminal(os.Stderr.Fd())

	if *catalogPath != "" && fs.NArg() == 0 {
		if err := runCatalogList(*catalogPath); err != nil {
			fail(logger, colorize, err)
		}
		return
	}

	opts := convert.Options{
		OutPath:      *outPath,
		StdoutFormat: *stdoutFormat,
		Inputs:       fs.Args(),
		CatalogPath:  *catalogPath,
	}

	driver := &convert.Driver[domain.Airspace]{
		Registry:    newRegistry(),
		BindCatalog: bindCatalog,
	}

	if *verbose && !*quiet {
		for _, in := range opts.Inputs {
			logger.Printf("reading %s", in)
		}
	}

	summary, err := driver.Run(opts)
	if err != nil {
		fail(logger, colorize, err)
	}

	if !*quiet {
		fmt.Fprintln(os.Stderr, summary.String())
	}
}

func runCatalogList(path string) error {
	cat, err := catalog.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = cat.Close() }()

	entries, err := cat.List()
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%s\t%s\t%d object(s)\tcached %s\n", e.Path, e.Kind, e.Count, e.CachedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func fail(logger *log.Logger, colorize bool, err error) {
	if colorize {
		logger.Printf("\x1b[31m%v\x1b[0m", err)
	} else {
		logger.Printf("%v", err)
	}
	os.Exit(1)
}
