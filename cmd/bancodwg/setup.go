package main

import (
	"fmt"

	"github.com/EduardoaMelegari/banco-projetos/internal/config"
	"github.com/EduardoaMelegari/banco-projetos/internal/utils"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newSetupCmd())
}

func newSetupCmd() *cobra.Command {
	var bucket string
	var region string
	var endpoint string
	var cacheDir string
	var force bool

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Write the initial config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			path, _ := cmd.Flags().GetString("config")
			path, err := utils.ResolvePath(path)
			if err != nil {
				return err
			}
			if utils.FileExists(path) && !force {
				return fmt.Errorf("config already exists at %s, use --force to overwrite", path)
			}

			cfg := config.Default()
			cfg.Bucket = bucket
			cfg.Region = region
			cfg.Endpoint = endpoint
			if cacheDir != "" {
				if cfg.CacheDir, err = utils.ResolvePath(cacheDir); err != nil {
					return err
				}
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.Save(path); err != nil {
				return err
			}

			fmt.Printf("%s %s\n", green("Config written to"), path)
			fmt.Printf("Set %s and %s in the environment or a .env file next to it.\n",
				cyan(config.EnvAccessKey), cyan(config.EnvSecretKey))
			return nil
		},
	}

	cmd.Flags().SortFlags = false
	cmd.Flags().StringVarP(&bucket, "bucket", "b", "", "bucket holding the DWG projects")
	cmd.Flags().StringVarP(&region, "region", "r", "us-east-1", "bucket region")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "custom S3 endpoint (MinIO, R2)")
	cmd.Flags().StringVarP(&cacheDir, "cachedir", "d", config.DefaultCacheDir, "local cache directory")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing config")
	cmd.MarkFlagRequired("bucket")

	return cmd
}
