package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/callbackd/callbackd/pkg/graphos"
	"github.com/callbackd/callbackd/pkg/graphql"
)

var exportSchemaPath string

var exportSchemaCmd = &cobra.Command{
	Use:   "export-schema",
	Short: "Write the federation subgraph SDL to a file",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		schema := graphql.BuildSchema(cfg)
		if err := os.WriteFile(exportSchemaPath, []byte(schema), 0o644); err != nil {
			return fmt.Errorf("write schema: %w", err)
		}
		logger.Info("schema exported", "path", exportSchemaPath)
		return nil
	},
}

var publishSchemaCmd = &cobra.Command{
	Use:   "publish-schema",
	Short: "Upload the subgraph SDL to the graph registry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runPublishSchema(cmd.Context())
	},
}

func runPublishSchema(ctx context.Context) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	schema := graphql.BuildSchema(cfg)
	client := graphos.NewClient(cfg.GraphOS.Apollo, cfg.ServiceName, Version, Commit)

	result, err := client.PublishSchema(ctx, schema)
	if err != nil {
		return err
	}
	logger.Info("schema published",
		"is_success", result.IsSuccess,
		"was_created", result.WasCreated,
		"was_updated", result.WasUpdated,
		"launch_id", result.LaunchID,
		"launch_url", result.LaunchURL)
	return nil
}

func init() {
	exportSchemaCmd.Flags().StringVarP(&exportSchemaPath, "path", "p", "schema.graphql",
		"Output file for the SDL")
	rootCmd.AddCommand(exportSchemaCmd)
	rootCmd.AddCommand(publishSchemaCmd)
}
