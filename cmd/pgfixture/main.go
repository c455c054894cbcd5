package main

import (
	"github.com/pressly/pgfixture/internal/cli"
)

func main() {
	cli.Main()
}
