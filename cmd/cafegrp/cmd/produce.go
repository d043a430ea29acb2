package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/cafegrp/cafegrp/producer"
)

var (
	produceMessage   string
	produceKey       string
	producePartition int32
	produceHasPart   bool
)

var produceCmd = &cobra.Command{
	Use:   "produce <topic>",
	Short: "Publish a message to a topic",
	Long: `Publish a single message to a topic.

Examples:
  cafegrp produce orders -m "hello world"
  cafegrp produce orders -m "data" -k "user-123"
  cafegrp produce orders -m "pinned" -p 2`,
	Args: cobra.ExactArgs(1),
	RunE: runProduce,
}

func init() {
	produceCmd.Flags().StringVarP(&produceMessage, "message", "m", "", "message value to publish (required)")
	produceCmd.Flags().StringVarP(&produceKey, "key", "k", "", "message key (determines partition)")
	produceCmd.Flags().Int32VarP(&producePartition, "partition", "p", -1, "target partition (overrides key-based routing)")
}

func runProduce(cmd *cobra.Command, args []string) error {
	topic := args[0]
	if produceMessage == "" {
		printError("--message is required")
		return cmd.Usage()
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeoutFlag)
	defer cancel()

	p := producer.New(topic, clientIdFlag, pool, meta)
	if err := p.Start(ctx); err != nil {
		return handleErr(err)
	}
	defer p.Close(ctx)

	opts := producer.Options{}
	if produceKey != "" {
		opts.Key = []byte(produceKey)
	}
	if producePartition >= 0 {
		opts.Partition = producePartition
		opts.HasPartition = true
	}

	partition, offset, err := p.Produce(ctx, []byte(produceMessage), opts)
	if err != nil {
		return handleErr(err)
	}
	printSuccess("published to %s partition %d offset %d", topic, partition, offset)
	return nil
}

func handleErr(err error) error {
	printError("%v", err)
	return err
}
