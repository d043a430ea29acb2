package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cafegrp/cafegrp/admin"
)

var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "Create and delete topics",
}

var (
	createPartitions   int32
	createReplFactor   int16
	createTimeoutMs    int32
	createTopicConfigs []string
)

var topicsCreateCmd = &cobra.Command{
	Use:   "create <topic>",
	Short: "Create a topic",
	Long: `Create a topic with the given partition count and replication factor.

Examples:
  cafegrp-admin topics create orders --partitions 6 --replication-factor 3
  cafegrp-admin topics create orders --config retention.ms=604800000`,
	Args: cobra.ExactArgs(1),
	RunE: runTopicsCreate,
}

func init() {
	topicsCmd.AddCommand(topicsCreateCmd)
	topicsCmd.AddCommand(topicsDeleteCmd)

	topicsCreateCmd.Flags().Int32Var(&createPartitions, "partitions", 1, "number of partitions")
	topicsCreateCmd.Flags().Int16Var(&createReplFactor, "replication-factor", 1, "replication factor")
	topicsCreateCmd.Flags().Int32Var(&createTimeoutMs, "timeout-ms", 30000, "broker-side request timeout, in milliseconds")
	topicsCreateCmd.Flags().StringArrayVar(&createTopicConfigs, "config", nil, "topic config key=value pairs")
}

func runTopicsCreate(cmd *cobra.Command, args []string) error {
	topic := args[0]
	configs := parseConfigPairs(createTopicConfigs)

	ctx, cancel := context.WithTimeout(context.Background(), timeoutFlag)
	defer cancel()

	spec := admin.TopicSpec{
		Topic:             topic,
		NumPartitions:     createPartitions,
		ReplicationFactor: createReplFactor,
		Configs:           configs,
	}
	if err := adm.CreateTopics(ctx, []admin.TopicSpec{spec}, createTimeoutMs); err != nil {
		printError("%v", err)
		return err
	}
	printSuccess("created topic %q (%d partitions, replication factor %d)", topic, createPartitions, createReplFactor)
	return nil
}

var deleteTimeoutMs int32

var topicsDeleteCmd = &cobra.Command{
	Use:   "delete <topic> [topic...]",
	Short: "Delete one or more topics",
	Long: `Delete one or more topics.

WARNING: this is destructive and cannot be undone.

Examples:
  cafegrp-admin topics delete orders
  cafegrp-admin topics delete orders payments`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTopicsDelete,
}

func init() {
	topicsDeleteCmd.Flags().Int32Var(&deleteTimeoutMs, "timeout-ms", 30000, "broker-side request timeout, in milliseconds")
}

func runTopicsDelete(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeoutFlag)
	defer cancel()

	if err := adm.DeleteTopics(ctx, args, deleteTimeoutMs); err != nil {
		printError("%v", err)
		return err
	}
	printSuccess("deleted %d topic(s)", len(args))
	return nil
}

func parseConfigPairs(pairs []string) map[string]string {
	if len(pairs) == 0 {
		return nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) == 2 {
			out[kv[0]] = kv[1]
		}
	}
	return out
}
