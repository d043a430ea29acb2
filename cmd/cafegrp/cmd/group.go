package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/cafegrp/cafegrp/coordination"
	"github.com/cafegrp/cafegrp/coordination/etcdstore"
	"github.com/cafegrp/cafegrp/coordination/zkstore"
	"github.com/cafegrp/cafegrp/fetchworker"
	"github.com/cafegrp/cafegrp/group"
)

var (
	groupZK          []string
	groupEtcd        []string
	groupMemberID    string
	groupFromBegin   bool
	groupCommitEvery int
)

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Run or inspect a consumer group member",
}

var groupRunCmd = &cobra.Command{
	Use:   "run <group> <topic>",
	Short: "Join a consumer group and print messages as they're assigned",
	Long: `Join a consumer group backed by an external coordination store
(ZooKeeper or etcd) and print every message delivered to this member's
assigned partitions, until interrupted.

Exactly one of --zk or --etcd selects the coordination backend.

Examples:
  cafegrp group run orders-consumers orders --zk localhost:2181
  cafegrp group run orders-consumers orders --etcd localhost:2379`,
	Args: cobra.ExactArgs(2),
	RunE: runGroupRun,
}

func init() {
	groupRunCmd.Flags().StringSliceVar(&groupZK, "zk", nil, "ZooKeeper ensemble addresses")
	groupRunCmd.Flags().StringSliceVar(&groupEtcd, "etcd", nil, "etcd endpoint addresses")
	groupRunCmd.Flags().StringVar(&groupMemberID, "member-id", "", "this member's id (random if empty)")
	groupRunCmd.Flags().BoolVar(&groupFromBegin, "from-beginning", false, "reset to the earliest offset when none is committed")
	groupRunCmd.Flags().IntVar(&groupCommitEvery, "commit-every", 100, "commit the offset after this many delivered messages")
	groupCmd.AddCommand(groupRunCmd)
}

func openStore(ctx context.Context) (coordination.Store, error) {
	switch {
	case len(groupZK) > 0:
		return zkstore.New(groupZK, 10*time.Second)
	case len(groupEtcd) > 0:
		cli, err := clientv3.New(clientv3.Config{Endpoints: groupEtcd, DialTimeout: timeoutFlag})
		if err != nil {
			return nil, fmt.Errorf("dialing etcd: %w", err)
		}
		return etcdstore.New(cli), nil
	default:
		return nil, fmt.Errorf("one of --zk or --etcd is required")
	}
}

func runGroupRun(cmd *cobra.Command, args []string) error {
	groupName, topic := args[0], args[1]

	store, err := openStore(context.Background())
	if err != nil {
		return handleErr(err)
	}

	reset := fetchworker.ResetNone
	if groupFromBegin {
		reset = fetchworker.ResetEarliest
	}

	handler := func(ctx context.Context, m fetchworker.Message) fetchworker.Action {
		fmt.Printf("%d\t%d\t%s\t%s\n", m.Partition, m.Offset, m.Key, m.Value)
		return fetchworker.Ack
	}

	cfg := group.Config{
		Group:          groupName,
		Topic:          topic,
		MemberID:       groupMemberID,
		ClientId:       clientIdFlag,
		OffsetReset:    reset,
		CommitEvery:    groupCommitEvery,
		CommitInterval: 5 * time.Second,
	}
	coord := group.New(cfg, pool, meta, store, handler)
	coord.Logger = logger

	printSuccess("joining group %q on topic %q", groupName, topic)
	if err := coord.Run(cmd.Context()); err != nil {
		return handleErr(err)
	}
	return nil
}
