package main

import "github.com/isdelr/metrics-bridge/internal/cli"

func main() {
	cli.Execute()
}
