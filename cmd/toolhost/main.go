// Command toolhost launches tool servers from a config file and exposes
// their tools from the command line: list them, call one, or check the
// config without starting anything.
package main

import "os"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
