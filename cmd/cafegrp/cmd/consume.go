package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cafegrp/cafegrp/fetchworker"
)

var (
	consumePartition     int32
	consumeOffset        int64
	consumeLimit         int
	consumeFromBeginning bool
)

var consumeCmd = &cobra.Command{
	Use:   "consume <topic>",
	Short: "Read messages from a topic partition",
	Long: `Read messages from one partition of a topic and print them to
stdout, one per line, until --limit is reached or --timeout
elapses.

Examples:
  cafegrp consume orders
  cafegrp consume orders -p 1 --offset 100
  cafegrp consume orders --from-beginning -n 50`,
	Args: cobra.ExactArgs(1),
	RunE: runConsume,
}

func init() {
	consumeCmd.Flags().Int32VarP(&consumePartition, "partition", "p", 0, "partition to consume from")
	consumeCmd.Flags().Int64Var(&consumeOffset, "offset", 0, "starting offset")
	consumeCmd.Flags().IntVarP(&consumeLimit, "limit", "n", 10, "maximum messages to print")
	consumeCmd.Flags().BoolVar(&consumeFromBeginning, "from-beginning", false, "start from the earliest available offset")
}

func runConsume(cmd *cobra.Command, args []string) error {
	topic := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), timeoutFlag)
	defer cancel()

	delivered := 0
	done := make(chan struct{})
	handler := func(ctx context.Context, m fetchworker.Message) fetchworker.Action {
		fmt.Printf("%d\t%s\t%s\n", m.Offset, m.Key, m.Value)
		delivered++
		if delivered >= consumeLimit {
			close(done)
			return fetchworker.Stop
		}
		return fetchworker.Ack
	}

	reset := fetchworker.ResetNone
	if consumeFromBeginning {
		reset = fetchworker.ResetEarliest
	}
	w := fetchworker.New(fetchworker.Config{
		Topic:       topic,
		Partition:   consumePartition,
		ClientId:    clientIdFlag,
		OffsetReset: reset,
	}, pool, meta, handler, nil)

	if err := meta.Refresh(ctx, topic); err != nil {
		return handleErr(err)
	}

	runCtx, cancel2 := context.WithCancel(ctx)
	defer cancel2()
	go func() {
		select {
		case <-done:
			cancel2()
		case <-runCtx.Done():
		}
	}()

	if err := w.Run(runCtx, consumeOffset); err != nil && runCtx.Err() == nil {
		return handleErr(err)
	}
	return nil
}
