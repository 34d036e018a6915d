package main

import "mindlog-agent/internal/cli"

func main() {
	cli.Execute()
}
