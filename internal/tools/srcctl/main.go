// Command srcctl runs the SRC formulas offline or against a calculation
// backend and prints JSON.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
