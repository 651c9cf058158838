package main

import (
	"fmt"
	"os"

	"github.com/dkarev/symflow/cmd/symflow/analyze"
	"github.com/dkarev/symflow/cmd/symflow/explore"
	"github.com/dkarev/symflow/cmd/symflow/flows"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "analyze":
		os.Exit(analyze.Run(os.Args[2:]))
	case "explore":
		os.Exit(explore.Run(os.Args[2:]))
	case "flows":
		os.Exit(flows.Run(os.Args[2:]))
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand: %s\n", os.Args[1])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `symflow: symbolic execution and taint analysis core

Usage:
  symflow analyze [--json] [--sarif] [--rules file.yaml] [--lang name] [--fuel n] [--depth n] [--timeout dur] [--workers n] <ir.json|src.go|dir>
  symflow explore [--json] [--fuel n] [--depth n] <ir.json|src.go|dir> <function>
  symflow flows   [--json] [--rules file.yaml] [--lang name] [--decay f] [--floor f] <ir.json|src.go|dir>
  symflow version`)
}
