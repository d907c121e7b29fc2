package main

import (
	"github.com/witanage/CW-Budget-sub000/internal/cli"
)

func main() {
	cli.Execute()
}
