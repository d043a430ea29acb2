package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var metadataCmd = &cobra.Command{
	Use:   "metadata <topic>",
	Short: "Show a topic's partitions and leaders",
	Args:  cobra.ExactArgs(1),
	RunE:  runMetadata,
}

func runMetadata(cmd *cobra.Command, args []string) error {
	topic := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), timeoutFlag)
	defer cancel()

	if err := meta.Refresh(ctx, topic); err != nil {
		return handleErr(err)
	}
	t := meta.Topic(topic)
	if t == nil {
		return handleErr(fmt.Errorf("unknown topic %q", topic))
	}

	fmt.Printf("%s\n", t.Name)
	fmt.Println("PARTITION\tLEADER\tREPLICAS\tISR")
	for _, p := range t.Partitions {
		leader := "none"
		if p.LeaderKnown {
			leader = fmt.Sprintf("%d", p.LeaderID)
		}
		fmt.Printf("%d\t%s\t%v\t%v\n", p.ID, leader, p.Replicas, p.Isr)
	}
	return nil
}
