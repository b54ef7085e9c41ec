// Command lxn2igc decodes a Filser/LX Navigation LXN tagged-record
// flight log into an IGC-format text file.
//
// Usage:
//
//	lxn2igc [-o FILENAME.igc] FILENAME.lxn
//
// If -o is omitted, the output path is derived from the input path by
// replacing a trailing ".lxn" or ".fil" extension with ".igc" (or
// appending ".igc" if the input has neither). "-o -" writes to stdout.
//
// Grounded on original_source/lxn2igc.c's main(): argument handling,
// default-output-name derivation, and "unlink partial output on error".
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"loggertoolsgo/internal/lxn"
)

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: lxn2igc [-o FILENAME.igc] FILENAME.lxn")
	fmt.Fprintln(w, "valid options:")
	fmt.Fprintln(w, " -o FILENAME    write output to this file (\"-\" for stdout)")
	fmt.Fprintln(w, " -h             help (this text)")
}

func defaultOutputPath(inPath string) string {
	lower := strings.ToLower(inPath)
	for _, ext := range []string{".lxn", ".fil"} {
		if strings.HasSuffix(lower, ext) {
			return inPath[:len(inPath)-len(ext)] + ".igc"
		}
	}
	return inPath + ".igc"
}

func main() {
	fs := flag.NewFlagSet("lxn2igc", flag.ContinueOnError)
	fs.Usage = func() { usage(os.Stderr) }
	outPath := fs.String("o", "", "write output to this file")

	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}

	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "lxn2igc: No input file specified")
		fmt.Fprintln(os.Stderr, "Try 'lxn2igc -h' for more information.")
		os.Exit(1)
	}
	if fs.NArg() > 1 {
		fmt.Fprintln(os.Stderr, "lxn2igc: Too many arguments")
		fmt.Fprintln(os.Stderr, "Try 'lxn2igc -h' for more information.")
		os.Exit(1)
	}

	inPath := fs.Arg(0)
	outputPath := *outPath
	if outputPath == "" {
		outputPath = defaultOutputPath(inPath)
	}

	if err := run(inPath, outputPath); err != nil {
		fmt.Fprintf(os.Stderr, "lxn2igc: %v\n", err)
		os.Exit(2)
	}
}

func openInput(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	if !strings.HasSuffix(strings.ToLower(path), ".gz") {
		return f, nil
	}
	gr, err := gzip.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return &gzipReadCloser{Reader: gr, file: f}, nil
}

type gzipReadCloser struct {
	*gzip.Reader
	file *os.File
}

func (g *gzipReadCloser) Close() error {
	err1 := g.Reader.Close()
	err2 := g.file.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

func run(inPath, outputPath string) error {
	in, err := openInput(inPath)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	if outputPath == "-" {
		return convert(in, os.Stdout)
	}

	tmpPath := outputPath + ".tmp-" + uuid.NewString()
	out, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmpPath, err)
	}

	if err := convert(in, out); err != nil {
		_ = out.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

func convert(in io.Reader, out io.Writer) error {
	dec := lxn.NewDecoder(out)
	buf := make([]byte, 4096)
	for {
		n, err := in.Read(buf)
		if n > 0 {
			if ferr := dec.Feed(buf[:n]); ferr != nil {
				return fmt.Errorf("decoding failed: %w", ferr)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read from input file: %w", err)
		}
	}
	return dec.Close()
}
