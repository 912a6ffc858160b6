package main

import "github.com/studiomerlo/dentsync/pkg/cli"

func main() {
	cli.Execute()
}
