package main

import "github.com/smpeer/smpeer/internal/cli"

func main() {
	cli.Execute()
}
