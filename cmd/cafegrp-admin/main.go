// Command cafegrp-admin is a terminal client for cluster administration:
// creating and deleting topics, and inspecting a broker's supported API
// versions.
//
// Usage:
//
//	cafegrp-admin topics create orders --partitions 6 --replication-factor 3
//	cafegrp-admin topics delete orders
//	cafegrp-admin apiversions
//
// Env vars: CAFEGRP_ADMIN_BOOTSTRAP, CAFEGRP_ADMIN_CLIENT_ID
package main

import (
	"fmt"
	"os"

	"github.com/cafegrp/cafegrp/cmd/cafegrp-admin/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
