// main.go
//
// Minimal entry point that delegates CLI handling to the Cobra root command in cmd/root.go

package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/procsim/procsim/cmd"
)

func main() {
	cmd.Execute()
}
