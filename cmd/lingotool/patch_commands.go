package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"lingotool/internal/catalog"
	"lingotool/internal/config"
	"lingotool/internal/patch"
)

func newPatchCommand(ctx *commandContext) *cobra.Command {
	patchCmd := &cobra.Command{
		Use:   "patch",
		Short: "Create, publish, and exchange translation patch sets",
	}

	patchCmd.AddCommand(newPatchCreateCommand(ctx))
	patchCmd.AddCommand(newPatchAddCommand(ctx))
	patchCmd.AddCommand(newPatchListCommand(ctx))
	patchCmd.AddCommand(newPatchShowCommand(ctx))
	patchCmd.AddCommand(newPatchPublishCommand(ctx))
	patchCmd.AddCommand(newPatchArchiveCommand(ctx))
	patchCmd.AddCommand(newPatchExportCommand(ctx))
	patchCmd.AddCommand(newPatchImportCommand(ctx))

	return patchCmd
}

func newPatchCreateCommand(ctx *commandContext) *cobra.Command {
	var description string
	var version string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an empty draft patch set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := ctx.patchService()
			if err != nil {
				return err
			}
			set, err := service.CreatePatchSet(cmd.Context(), args[0], description, version)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created draft patch set %s\n", set.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "Description of the patch set")
	cmd.Flags().StringVar(&version, "version", "", "Version label for the patch set")
	return cmd
}

func newPatchAddCommand(ctx *commandContext) *cobra.Command {
	var containerID string
	var locale string
	var namespace string
	var policy string

	cmd := &cobra.Command{
		Use:   "add <set-id> <entries-file>",
		Short: "Add a translation item from a JSON entries file to a draft set",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(containerID) == "" {
				return fmt.Errorf("--container is required")
			}
			if strings.TrimSpace(locale) == "" {
				return fmt.Errorf("--locale is required")
			}
			parsedPolicy, err := patch.ParsePolicy(policy)
			if err != nil {
				return err
			}

			entries, err := loadEntriesFile(args[1])
			if err != nil {
				return err
			}

			service, err := ctx.patchService()
			if err != nil {
				return err
			}
			item, err := service.GeneratePatchItem(cmd.Context(), containerID, locale, namespace, entries, parsedPolicy)
			if err != nil {
				return err
			}
			itemID, err := service.AddItemToSet(cmd.Context(), args[0], item)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Added item %s (%d entries, policy %s)\n", itemID, len(entries), parsedPolicy)
			if item.UpstreamAnchorBlob != "" {
				fmt.Fprintf(out, "Anchored to upstream blob %s\n", shortHash(item.UpstreamAnchorBlob))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&containerID, "container", "", "Target container id")
	cmd.Flags().StringVarP(&locale, "locale", "l", "", "Target locale (e.g. de_de)")
	cmd.Flags().StringVarP(&namespace, "namespace", "n", "", "Target namespace (defaults to the container's)")
	cmd.Flags().StringVarP(&policy, "policy", "p", string(patch.PolicyOverlay), "Write policy (overlay, replace, merge, create_if_missing)")
	return cmd
}

func newPatchListCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List patch sets",
		RunE: func(cmd *cobra.Command, args []string) error {
			var status catalog.PatchStatus
			if trimmed := strings.TrimSpace(statusFilter); trimmed != "" {
				parsed, ok := catalog.ParsePatchStatus(trimmed)
				if !ok {
					return fmt.Errorf("unknown status %q", trimmed)
				}
				status = parsed
			}

			service, err := ctx.patchService()
			if err != nil {
				return err
			}
			sets, err := service.ListPatchSets(cmd.Context(), status)
			if err != nil {
				return err
			}
			if len(sets) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No patch sets")
				return nil
			}

			rows := make([][]string, 0, len(sets))
			for _, set := range sets {
				rows = append(rows, []string{
					set.ID,
					set.Name,
					set.Version,
					string(set.Status),
					set.CreatedAt.Format(time.RFC3339),
				})
			}
			printRows(cmd.OutOrStdout(),
				[]string{"ID", "Name", "Version", "Status", "Created"},
				rows,
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&statusFilter, "status", "s", "", "Filter by lifecycle status")
	return cmd
}

func newPatchShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <set-id>",
		Short: "Show a patch set and its items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			set, err := store.GetPatchSet(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			service, err := ctx.patchService()
			if err != nil {
				return err
			}
			items, err := service.Items(cmd.Context(), set.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Set:       %s\n", set.ID)
			fmt.Fprintf(out, "Name:      %s\n", set.Name)
			if set.Description != "" {
				fmt.Fprintf(out, "About:     %s\n", set.Description)
			}
			fmt.Fprintf(out, "Status:    %s\n", set.Status)
			if set.Signature != "" {
				fmt.Fprintf(out, "Signature: %s\n", set.Signature)
			}
			if len(items) == 0 {
				fmt.Fprintln(out, "No items")
				return nil
			}

			rows := make([][]string, 0, len(items))
			for _, item := range items {
				rows = append(rows, []string{
					item.ID,
					item.TargetContainerID,
					item.Namespace,
					item.Locale,
					string(item.Policy),
					strconv.Itoa(len(item.Content)),
				})
			}
			printRows(out,
				[]string{"Item", "Container", "Namespace", "Locale", "Policy", "Entries"},
				rows,
				5,
			)
			return nil
		},
	}
}

func newPatchPublishCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "publish <set-id>",
		Short: "Validate a draft set and move it to published",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := ctx.patchService()
			if err != nil {
				return err
			}
			report, err := service.PublishPatchSet(cmd.Context(), args[0])

			out := cmd.OutOrStdout()
			if report != nil {
				for _, itemErr := range report.ItemErrors {
					fmt.Fprintf(out, "item %s: %v\n", itemErr.PatchItemID, itemErr.Err)
				}
				if report.Quality != nil {
					fmt.Fprintln(out, report.Quality.Summary())
					for _, key := range report.Quality.FailureKeys() {
						for _, result := range report.Quality.Failures[key] {
							fmt.Fprintf(out, "  %s [%s/%s] %s\n", key, result.Validator, result.Level, result.Message)
						}
					}
				}
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Published %s (signature %s)\n", report.PatchSetID, shortHash(report.Signature))
			return nil
		},
	}
}

func newPatchArchiveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "archive <set-id>",
		Short: "Retire a patch set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := ctx.patchService()
			if err != nil {
				return err
			}
			if err := service.ArchivePatchSet(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Archived %s\n", args[0])
			return nil
		},
	}
}

func newPatchExportCommand(ctx *commandContext) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "export <set-id>",
		Short: "Export a patch set as a portable JSON manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := ctx.patchService()
			if err != nil {
				return err
			}
			data, err := service.ExportManifestJSON(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if strings.TrimSpace(outputPath) == "" {
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			target, err := config.ExpandPath(outputPath)
			if err != nil {
				return err
			}
			if err := os.WriteFile(target, data, 0o644); err != nil {
				return fmt.Errorf("write manifest %q: %w", target, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote manifest to %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the manifest to a file instead of stdout")
	return cmd
}

func newPatchImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <manifest-file>",
		Short: "Import a patch set from a JSON manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			data, err := os.ReadFile(source)
			if err != nil {
				return fmt.Errorf("read manifest %q: %w", args[0], err)
			}
			manifest, err := patch.ParseManifest(data)
			if err != nil {
				return err
			}

			service, err := ctx.patchService()
			if err != nil {
				return err
			}
			set, err := service.ImportPatchSet(cmd.Context(), manifest)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %s as %s (%s)\n", manifest.Name, set.ID, set.Status)
			return nil
		},
	}
}
