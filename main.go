package main

import (
	"github.com/tdnlab/tdnlaunch/cmd"
)

func main() {
	cmd.Execute()
}
