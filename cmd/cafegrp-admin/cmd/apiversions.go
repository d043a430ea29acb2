package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var apiVersionsCmd = &cobra.Command{
	Use:   "apiversions",
	Short: "List the API versions supported by the bootstrap broker",
	RunE:  runApiVersions,
}

func runApiVersions(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeoutFlag)
	defer cancel()

	versions, err := adm.ApiVersions(ctx)
	if err != nil {
		printError("%v", err)
		return err
	}

	fmt.Println("API KEY\tMIN\tMAX")
	for _, v := range versions {
		fmt.Printf("%d\t%d\t%d\n", v.ApiKey, v.MinVersion, v.MaxVersion)
	}
	return nil
}
