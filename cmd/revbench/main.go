// Command revbench drives the component and member caches through a
// synthetic workload and prints their reports.
package main

import "os"

func main() {
	os.Exit(run(os.Stdout, os.Stderr, os.Args[1:]))
}
