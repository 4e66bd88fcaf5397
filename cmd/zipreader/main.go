package main

import (
	"github.com/nguyengg/zipreader/internal/cmd"
)

func main() {
	_, err := cmd.NewParser().Parse()
	exit(err)
}
