// irfacts extracts typed declaration trees into relational facts.
//
// Each input unit is lowered into labelled tuples (classes, methods,
// statements, expressions and types) held in a fact store that can be
// inspected, queried with Datalog or served over MCP.
package main

import (
	"fmt"
	"os"

	"github.com/Benny93/irfacts/cmd"
)

func main() {
	cli := cmd.NewCLI()

	if err := cli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
