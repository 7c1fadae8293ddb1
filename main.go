// The main package for the flightdeck executable.
package main

import (
	"github.com/JakeFAU/flightdeck/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
