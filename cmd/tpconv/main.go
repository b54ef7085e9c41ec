// Command tpconv converts turnpoint/waypoint files between the SeeYou,
// Cenfis (text, DAB binary, hex/Intel-HEX), Filser DA4, and Zander
// formats, with an optional filter chain and a local decode cache.
//
// Usage:
//
//	tpconv [options] FILE1 ...
//
// Options:
//
//	-o FILENAME    write output to this file
//	-f FORMAT      write output to stdout in this format
//	-F FILTER      apply a filter (airfield, name:NAME, distance:ARGS);
//	               may be given more than once, applied in order
//	-catalog PATH  cache decoded turnpoint sets in a local SQLite file
//	-v             verbose: log each input file name before converting
//	-q             quiet: suppress the summary line
//	-h             help (this text)
//
// tpconv -catalog PATH alone, with no input files, lists that catalog's
// cached entries instead of converting anything.
//
// Grounded on original_source/tp-conv.cc's main() and the teacher's
// cmd/acars_parser/main.go CLI shape (flag package, a usage() func, no
// CLI framework).
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
	"loggertoolsgo/internal/filters"
	"loggertoolsgo/internal/formats/cenfisdb"
	"loggertoolsgo/internal/formats/cenfishex"
	"loggertoolsgo/internal/formats/cenfistext"
	"loggertoolsgo/internal/formats/filser"
	"loggertoolsgo/internal/formats/seeyou"
	"loggertoolsgo/internal/formats/zander"
	"loggertoolsgo/internal/pipeline"
)

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: tpconv [options] FILE1 ...")
	fmt.Fprintln(w, "options:")
	fmt.Fprintln(w, " -o FILENAME    write output to this file")
	fmt.Fprintln(w, " -f FORMAT      write output to stdout with this format")
	fmt.Fprintln(w, " -F FILTER      use a filter (airfield, name:NAME, distance:ARGS)")
	fmt.Fprintln(w, " -catalog PATH  cache decoded turnpoints in a local SQLite file")
	fmt.Fprintln(w, " -v             verbose output")
	fmt.Fprintln(w, " -q             quiet: no summary line")
	fmt.Fprintln(w, " -h             help (this text)")
}

func newRegistry() *pipeline.Registry[domain.TurnPoint] {
	reg := pipeline.NewRegistry[domain.TurnPoint]()
	seeyou.Register(reg)
	cenfistext.Register(reg)
	cenfisdb.Register(reg)
	cenfishex.Register(reg)
	filser.Register(reg)
	zander.Register(reg)
	return reg
}

func applyFilter(r pipeline.Reader[domain.TurnPoint], name, args string) (pipeline.Reader[domain.TurnPoint], error) {
	switch name {
	case "airfield":
		return filters.Airfield(r), nil
	case "name":
		return filters.Name(r, args)
	case "distance":
		return filters.Distance(r, args)
	default:
		return nil, pipeline.NewMalformedInput("unknown filter: " + name)
	}
}

func bindCatalog(c *catalog.Catalog) (func(string) ([]domain.TurnPoint, bool, error), func(string, []domain.TurnPoint) error) {
	return c.LookupTurnPoints, c.StoreTurnPoints
}

// repeatedFlag collects every occurrence of a -F flag, in order, matching
// getopt's behavior of appending repeated options to a list rather than
// keeping only the last one.
type repeatedFlag []string

func (f *repeatedFlag) String() string { return "" }
func (f *repeatedFlag) Set(v string) error {
	*f = append(*f, v)
	return nil
}

func main() {
	fs := flag.NewFlagSet("tpconv", flag.ContinueOnError)
	fs.Usage = func() { usage(os.Stderr) }

	outPath := fs.String("o", "", "write output to this file")
	stdoutFormat := fs.String("f", "", "write output to stdout with this format")
	catalogPath := fs.String("catalog", "", "cache decoded turnpoints in a local SQLite file")
	verbose := fs.Bool("v", false, "verbose output")
	quiet := fs.Bool("q", false, "quiet: no summary line")
	var filterSpecs repeatedFlag
	fs.Var(&filterSpecs, "F", "apply a filter")

	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}

	logger := log.New(os.Stderr, "tpconv: ", 0)
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
		FilterSpecs:  filterSpecs,
		Inputs:       fs.Args(),
		CatalogPath:  *catalogPath,
	}

	driver := &convert.Driver[domain.TurnPoint]{
		Registry:    newRegistry(),
		ApplyFilter: applyFilter,
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
