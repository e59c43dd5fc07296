package main

import (
	_ "time/tzdata"

	"github.com/vietddude/slicks/internal/cli"
)

func main() {
	cli.Execute()
}
