// Command matchctl is the operator CLI for shortlists, quotas and the
// shortlist request queue.
package main

import "os"

func main() {
	if err := newRootCmd(connectFromConfig).Execute(); err != nil {
		os.Exit(1)
	}
}
