package main

import (
	"fmt"

	"github.com/EduardoaMelegari/banco-projetos/internal/app"
	syncpkg "github.com/EduardoaMelegari/banco-projetos/internal/sync"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newSyncCmd())
}

func newSyncCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync cycle against the bucket",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true

			a, err := app.New(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			token, err := loginFromCLI(cmd, a)
			if err != nil {
				return err
			}

			report, err := a.RunSync(cmd.Context(), token, dryRun)
			if err != nil {
				return err
			}

			printReport(report, dryRun)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "show the plan without transferring anything")
	return cmd
}

func printReport(report *syncpkg.Report, dryRun bool) {
	if !report.Plan.HasChanges() {
		fmt.Println(green("Everything in sync"))
		return
	}

	if dryRun {
		fmt.Println(yellow("Dry run, nothing was transferred:"))
	}

	for _, action := range report.Plan.Actions {
		if action.Kind == syncpkg.ActionSkip {
			continue
		}
		fmt.Printf("  %-14s %-50s %s\n", colorKind(action.Kind), action.Path, action.Reason)
	}
	for _, path := range report.Plan.Cleanups {
		fmt.Printf("  %-14s %s\n", "cleanup", path)
	}

	s := report.Summary
	if dryRun {
		return
	}
	fmt.Printf("%s %d  %s %d  %s %d\n",
		green("ok:"), s.Succeeded,
		red("failed:"), s.Failed,
		yellow("conflicts:"), s.Conflicts,
	)
}

func colorKind(kind syncpkg.ActionKind) string {
	switch kind {
	case syncpkg.ActionUpload:
		return cyan(string(kind))
	case syncpkg.ActionDownload:
		return green(string(kind))
	case syncpkg.ActionDeleteLocal, syncpkg.ActionDeleteRemote:
		return red(string(kind))
	case syncpkg.ActionConflict:
		return yellow(string(kind))
	default:
		return string(kind)
	}
}
