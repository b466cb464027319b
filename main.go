package main

import (
	"os"

	"reel/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
