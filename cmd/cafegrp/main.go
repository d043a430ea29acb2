// Command cafegrp is a terminal client for producing to, consuming
// from, and inspecting the consumer groups of a Kafka 0.8.x cluster
// speaking this module's wire protocol.
//
// Usage:
//
//	cafegrp produce <topic> -m "hello world"
//	cafegrp consume <topic> -p 0 --from-beginning
//	cafegrp group run <group> <topic> --zk localhost:2181
//	cafegrp metadata <topic>
//
// Configuration file: ~/.cafegrp/config.yaml
// Env vars: CAFEGRP_BOOTSTRAP, CAFEGRP_CLIENT_ID
package main

import (
	"os"

	"github.com/cafegrp/cafegrp/cmd/cafegrp/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
