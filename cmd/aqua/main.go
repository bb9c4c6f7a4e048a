// Command aqua inspects aqua databases: it prints stored documents as JSON or
// YAML, lists ids and attachments, and reports per-database statistics.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
