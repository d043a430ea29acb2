package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cafegrp/cafegrp/admin"
	"github.com/cafegrp/cafegrp/broker"
)

var (
	bootstrapFlag string
	clientIdFlag  string
	timeoutFlag   time.Duration

	adm *admin.Client
)

var rootCmd = &cobra.Command{
	Use:   "cafegrp-admin",
	Short: "Cluster administration for a Kafka 0.8.x cluster",
	Long: `cafegrp-admin is a terminal client for cluster administration:
creating and deleting topics, and inspecting broker API versions.

This is separate from cafegrp, which is for producing and consuming.

Use "cafegrp-admin [command] --help" for more information about a command.`,
	PersistentPreRunE: initializeClient,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&bootstrapFlag, "bootstrap", "b", "localhost:9092",
		"bootstrap broker address (env: CAFEGRP_ADMIN_BOOTSTRAP)")
	rootCmd.PersistentFlags().StringVar(&clientIdFlag, "client-id", "cafegrp-admin",
		"client id sent with every request (env: CAFEGRP_ADMIN_CLIENT_ID)")
	rootCmd.PersistentFlags().DurationVar(&timeoutFlag, "timeout", 30*time.Second,
		"request timeout")

	rootCmd.AddCommand(topicsCmd)
	rootCmd.AddCommand(apiVersionsCmd)
	rootCmd.AddCommand(versionCmd)
}

// initializeClient builds the admin.Client every subcommand but
// "version" uses, resolving the bootstrap address with flag > env
// precedence.
func initializeClient(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	bootstrap := bootstrapFlag
	if v := os.Getenv("CAFEGRP_ADMIN_BOOTSTRAP"); v != "" && !cmd.Flags().Changed("bootstrap") {
		bootstrap = v
	}
	clientId := clientIdFlag
	if v := os.Getenv("CAFEGRP_ADMIN_CLIENT_ID"); v != "" && !cmd.Flags().Changed("client-id") {
		clientId = v
	}

	pool := broker.NewPool(clientId, zap.NewNop(), nil)
	adm = admin.New(pool, bootstrap, clientId)
	return nil
}

func printSuccess(format string, a ...interface{}) {
	fmt.Printf("✓ "+format+"\n", a...)
}

func printError(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", a...)
}
