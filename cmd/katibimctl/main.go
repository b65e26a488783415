package main

import "github.com/ent0n29/katibim/internal/cli"

func main() {
	cli.Execute()
}
