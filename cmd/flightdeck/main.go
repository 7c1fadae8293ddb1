package main

import "github.com/JakeFAU/flightdeck/cmd"

func main() {
	cmd.Execute()
}
