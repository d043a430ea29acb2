package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/cafegrp/cafegrp/broker"
	"github.com/cafegrp/cafegrp/metadata"
)

var (
	bootstrapFlag []string
	clientIdFlag  string
	timeoutFlag   time.Duration

	pool   *broker.Pool
	meta   *metadata.Cache
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "cafegrp",
	Short: "Command-line client for a Kafka 0.8.x cluster",
	Long: `cafegrp is a terminal client for the cafegrp Kafka 0.8.x library:
produce messages, consume them, and inspect consumer groups and cluster
metadata from the command line.

Use "cafegrp [command] --help" for more information about a command.`,
	PersistentPreRunE: initializeClient,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&bootstrapFlag, "bootstrap", nil,
		"comma-separated bootstrap broker addresses (env: CAFEGRP_BOOTSTRAP)")
	rootCmd.PersistentFlags().StringVar(&clientIdFlag, "client-id", "cafegrp-cli",
		"client id sent with every request (env: CAFEGRP_CLIENT_ID)")
	rootCmd.PersistentFlags().DurationVar(&timeoutFlag, "timeout", 10*time.Second,
		"request timeout")

	viper.SetEnvPrefix("cafegrp")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(defaultConfigDir())
	_ = viper.BindPFlag("bootstrap", rootCmd.PersistentFlags().Lookup("bootstrap"))
	_ = viper.BindPFlag("client-id", rootCmd.PersistentFlags().Lookup("client-id"))

	rootCmd.AddCommand(produceCmd)
	rootCmd.AddCommand(consumeCmd)
	rootCmd.AddCommand(groupCmd)
	rootCmd.AddCommand(metadataCmd)
	rootCmd.AddCommand(versionCmd)
}

func defaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cafegrp"
	}
	return filepath.Join(home, ".cafegrp")
}

// initializeClient loads config.yaml (if present), resolves the
// bootstrap broker list with flag > env > config-file precedence, and
// builds the shared broker.Pool/metadata.Cache every subcommand uses.
func initializeClient(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" {
		return nil
	}
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	bootstrap := bootstrapFlag
	if len(bootstrap) == 0 {
		if v := viper.GetStringSlice("bootstrap"); len(v) > 0 {
			bootstrap = v
		}
	}
	if len(bootstrap) == 0 {
		bootstrap = []string{"localhost:9092"}
	}
	clientId := clientIdFlag
	if v := viper.GetString("client-id"); v != "" && clientId == "cafegrp-cli" {
		clientId = v
	}

	logger = zap.NewNop()
	pool = broker.NewPool(clientId, logger, nil)
	meta = metadata.New(pool, clientId, bootstrap)
	return nil
}

func printSuccess(format string, a ...interface{}) {
	fmt.Printf("✓ "+format+"\n", a...)
}

func printError(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", a...)
}
