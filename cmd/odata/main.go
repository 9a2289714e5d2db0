// Command odata serves the demo workload through the structural plan cache.
//
// Usage:
//
//	odata load                     # write the demo dataset to the data dir
//	odata run [--metrics-addr :9090]
//	odata query big-orders --arg min=250 --arg top=3
//	odata explain expand-orders
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		os.Exit(1)
	}
}
