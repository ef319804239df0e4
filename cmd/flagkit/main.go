// Command flagkit is a small operational CLI for evaluating flags and
// inspecting config documents against a live SDK key, without writing
// any Go code.
package main

import (
	"fmt"
	"os"

	"github.com/flagkit/flagkit/cmd/flagkit/cmd"
)

var buildVersion = "dev"

func main() {
	cmd.SetVersion(buildVersion)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
