// Copyright 2024 The GoJVM Authors. All rights reserved.
// Use of this source code is governed by an Apache v2 license
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/santiago0411/gojvm/classfile"
	"github.com/santiago0411/gojvm/vm"
)

// version is the module's user-facing version string, printed by the
// version subcommand. There is no build-time stamping pipeline in this
// subset, so it is a plain constant the way saferwall-pe's own
// versionCmd prints a literal string.
const version = "0.1.0"

func runClassFile(classPath, methodName string) int {
	cf, err := classfile.New(classPath, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load %s: %v\n", classPath, err)
		return 1
	}
	defer cf.Close()

	engine := vm.NewEngine(cf, nil)

	if _, err := cf.MethodByName(methodName); err != nil {
		className, classErr := cf.ThisClassName()
		if classErr != nil {
			className = "<unknown>"
		}
		fmt.Fprintf(os.Stderr, "method '%s' does not exist in class '%s'\n", methodName, className)
		return 0
	}

	if err := engine.ExecuteMethod(methodName); err != nil {
		fmt.Fprintf(os.Stderr, "execution of %s failed: %v\n", methodName, err)
	}
	return 0
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <class-file> <method>",
		Short: "Decode a class file and execute one of its static methods",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 2 {
				fmt.Fprint(os.Stdout, cmd.UsageString())
				return nil
			}
			os.Exit(runClassFile(args[0], args[1]))
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the gojvm version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("gojvm version %s\n", version)
		},
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gojvm <class-file> <method>",
		Short: "A minimal Java class-file interpreter",
		Long:  "gojvm decodes a single compiled Java class file and executes one of its static methods on a small stack-based bytecode interpreter.",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 2 {
				fmt.Fprint(os.Stdout, cmd.UsageString())
				return nil
			}
			os.Exit(runClassFile(args[0], args[1]))
			return nil
		},
	}
	root.AddCommand(newRunCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
