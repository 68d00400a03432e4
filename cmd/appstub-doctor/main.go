package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"appstub/doctor"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var opts doctor.Options

	flagSet := pflag.NewFlagSet("appstub-doctor", pflag.ContinueOnError)
	flagSet.StringVarP(&opts.Bundle, "bundle", "b", "", "path to the .app bundle to check")
	flagSet.StringVar(&opts.Interpreter, "interpreter", "", "interpreter to use instead of the bundled one")
	flagSet.DurationVar(&opts.Timeout, "timeout", 10*time.Second, "how long the interpreter may take to answer")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return 0
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return 0
	}

	if opts.Bundle == "" && flagSet.NArg() == 1 {
		opts.Bundle = flagSet.Arg(0)
	}
	if opts.Bundle == "" || flagSet.NArg() > 1 {
		printHelp(flagSet)
		return 2
	}
	return doctor.Run(os.Stdout, opts)
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `appstub-doctor checks that an application bundle can be launched.

Usage:
  appstub-doctor --bundle MyApp.app [flags]

Flags:
%s`, flagSet.FlagUsages())
}
