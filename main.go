package main

import "github.com/GroundMC/GroundMCProfileCache/cmd"

func main() {
	cmd.Execute()
}
