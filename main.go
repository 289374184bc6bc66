package main

import (
	"fmt"
	"os"
)

var (
	GitCommit string
	GitTag    string
	BuildTime string
)

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
