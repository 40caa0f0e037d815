package main

import (
	"loadpulse/cmd"
)

func main() {
	cmd.Execute()
}
