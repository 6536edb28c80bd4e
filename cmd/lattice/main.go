package main

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/funvibe/lattice/internal/config"
	"github.com/funvibe/lattice/internal/pipeline"
	"github.com/funvibe/lattice/internal/repl"
	"github.com/funvibe/lattice/internal/source"
	"github.com/funvibe/lattice/internal/value"
)

type options struct {
	level   pipeline.Level
	outfile string
	infile  string
	silent  bool
	repl    bool
}

func usage() {
	fmt.Fprintf(os.Stderr, "lattice %s\n", config.Version)
	fmt.Fprintln(os.Stderr, "usage: lattice [-lex|-parse|-ast|-ir] [-o PATH] [-silent] FILE")
	fmt.Fprintln(os.Stderr, "       lattice -           start an interactive session")
}

func parseArgs(args []string, opts *options) error {
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-o":
			if i == len(args)-1 {
				return errors.New("'-o' was provided without an argument")
			}
			i++
			opts.outfile = args[i]
		case "-silent":
			opts.silent = true
		case "-lex":
			opts.level = pipeline.LevelLex
		case "-parse":
			opts.level = pipeline.LevelParse
		case "-ast":
			opts.level = pipeline.LevelAST
		case "-ir":
			opts.level = pipeline.LevelIR
		case "-":
			opts.repl = true
		case "-h", "-help", "--help":
			usage()
			os.Exit(0)
		default:
			opts.infile = args[i]
			opts.repl = false
		}
	}
	return nil
}

func run() (int, error) {
	opts := options{level: pipeline.LevelASM, repl: true}

	project, err := config.LoadProject(config.ProjectFileName)
	if err != nil {
		return 1, errors.Wrapf(err, "could not read %s", config.ProjectFileName)
	}
	if project.Level != "" {
		opts.level = pipeline.ParseLevel(project.Level)
	}
	opts.outfile = project.Output
	opts.silent = project.Silent

	if err := parseArgs(os.Args[1:], &opts); err != nil {
		return 1, err
	}

	if opts.repl {
		r := repl.New(opts.level, opts.silent, os.Stdin, os.Stdout)
		return r.Run(), nil
	}

	if opts.outfile == "" {
		opts.outfile = config.TrimSourceExt(opts.infile) + ".s"
	}

	src, err := source.FromFile(opts.infile)
	if err != nil {
		return 1, err
	}

	if opts.silent {
		value.FoldOutput = io.Discard
	}

	ctx := pipeline.NewContext(src, opts.level)
	pipeline.ForLevel(opts.level).Run(ctx)

	if ctx.Reporter.Count() > 0 {
		ctx.Reporter.Print(os.Stdout)
		return ctx.Reporter.Count(), nil
	}

	switch opts.level {
	case pipeline.LevelLex:
		if !opts.silent {
			for _, t := range ctx.Tokens.Tokens() {
				fmt.Println(t)
			}
		}
	case pipeline.LevelParse:
		if !opts.silent && ctx.Program != nil {
			ctx.Program.Format(os.Stdout, 0)
		}
	case pipeline.LevelAST:
		if !opts.silent && ctx.Values != nil {
			ctx.Values.Format(os.Stdout, 0)
		}
	case pipeline.LevelIR:
		if !opts.silent && ctx.Gen != nil {
			ctx.Gen.Format(os.Stdout)
		}
	case pipeline.LevelASM:
		out, err := os.Create(opts.outfile)
		if err != nil {
			return 1, errors.Wrapf(err, "could not create output file %q", opts.outfile)
		}
		defer out.Close()
		if _, err := ctx.Data.WriteTo(out); err != nil {
			return 1, errors.Wrap(err, "could not write output")
		}
		if _, err := ctx.Text.WriteTo(out); err != nil {
			return 1, errors.Wrap(err, "could not write output")
		}
	}
	return 0, nil
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintln(os.Stderr, "lattice:", err)
	}
	os.Exit(code)
}
