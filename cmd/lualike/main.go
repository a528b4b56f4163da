// Package main is a diagnostic front end for the runtime: version info and an
// interactive inspector over a fresh vm. Running scripts requires a host that
// registers a parser and executor.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/kingwill101/lualike/src/conf"
	"github.com/kingwill101/lualike/src/runtime"
)

var (
	showVersion bool
	interactive bool
)

func init() {
	flag.BoolVar(&showVersion, "v", false, "show version information")
	flag.BoolVar(&interactive, "i", false, "enter the interactive inspector")
}

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if showVersion {
		printVersion()
		if !interactive {
			return
		}
	}
	if !interactive {
		printUsage()
		return
	}

	vm := runtime.New(context.Background(), nil, os.Args...)
	defer func() { _ = vm.Close() }()
	printVersion()
	checkErr(vm.Inspect())
}

func printVersion() {
	fmt.Fprintf(os.Stderr, "%v\n", conf.FullVersion())
}

func printUsage() {
	printVersion()
	fmt.Fprint(os.Stderr, "\nUsage: lualike [options]\n")
	flag.PrintDefaults()
}

func checkErr(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
