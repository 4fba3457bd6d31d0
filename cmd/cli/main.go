package main

import "github.com/frontscan/cmd/cli/cmd"

func main() {
	cmd.Execute()
}
