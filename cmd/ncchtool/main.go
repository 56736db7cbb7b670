package main

import (
	"github.com/go3ds/ncch/internal/cmd"
)

func main() {
	cmd.Execute()
}
