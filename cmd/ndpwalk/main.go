// Command ndpwalk drives the address-translation core outside of any
// enclosing simulator: it plays the role of "the enclosing simulator"
// the core packages otherwise treat as an external collaborator.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
