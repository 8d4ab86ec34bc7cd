package main

import (
	"fmt"
	"os"

	"github.com/harryfoxfox/safe-sub000/cmd/saferamdiskctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
