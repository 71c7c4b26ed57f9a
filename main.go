package main

import (
	"MeloFM/cmd"
)

func main() {
	cmd.Execute()
}
