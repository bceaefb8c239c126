package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"lingotool/internal/catalog"
)

func newBlobCommand(ctx *commandContext) *cobra.Command {
	blobCmd := &cobra.Command{
		Use:   "blob",
		Short: "Inspect and maintain the content-addressed blob store",
	}

	blobCmd.AddCommand(newBlobStatsCommand(ctx))
	blobCmd.AddCommand(newBlobGetCommand(ctx))
	blobCmd.AddCommand(newBlobRefsCommand(ctx))
	blobCmd.AddCommand(newBlobDiffCommand(ctx))
	blobCmd.AddCommand(newBlobSimilarCommand(ctx))
	blobCmd.AddCommand(newBlobGCCommand(ctx))

	return blobCmd
}

func newBlobStatsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show store-wide blob and dedup statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, map[string]any{
					"total_blobs":      stats.TotalBlobs,
					"total_entries":    stats.TotalEntries,
					"total_size":       stats.TotalSize,
					"total_references": stats.TotalReferences,
					"dedup_ratio":      stats.DedupRatio,
				})
			}
			rows := [][]string{
				{"Blobs", strconv.Itoa(stats.TotalBlobs)},
				{"Entries", strconv.Itoa(stats.TotalEntries)},
				{"Size (bytes)", strconv.FormatInt(stats.TotalSize, 10)},
				{"References", strconv.Itoa(stats.TotalReferences)},
				{"Dedup ratio", fmt.Sprintf("%.2f", stats.DedupRatio)},
			}
			printRows(cmd.OutOrStdout(), []string{"Metric", "Value"}, rows, 1)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit statistics as JSON")
	return cmd
}

func newBlobGetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "get <hash>",
		Short: "Print a blob's canonical JSON content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			blob, err := store.GetBlob(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), blob.CanonicalJSON)
			return nil
		},
	}
}

func newBlobRefsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "refs <hash>",
		Short: "List language files referencing a blob",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			refs, err := store.BlobReferences(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(refs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No references")
				return nil
			}
			rows := make([][]string, 0, len(refs))
			for _, ref := range refs {
				rows = append(rows, []string{ref.ContainerID, ref.Namespace, ref.Locale, ref.FilePath})
			}
			printRows(cmd.OutOrStdout(),
				[]string{"Container", "Namespace", "Locale", "Path"},
				rows,
			)
			return nil
		},
	}
}

func newBlobDiffCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "diff <hash-a> <hash-b>",
		Short: "Show key-level differences between two blobs",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			changes, err := store.DiffBlobs(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if len(changes) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Blobs are identical")
				return nil
			}
			return writeJSON(cmd, changes)
		},
	}
}

func newBlobSimilarCommand(ctx *commandContext) *cobra.Command {
	var threshold float64
	var limit int

	cmd := &cobra.Command{
		Use:   "similar <hash>",
		Short: "Find blobs with overlapping key sets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			matches, err := store.FindSimilarBlobs(cmd.Context(), args[0], threshold, limit)
			if err != nil {
				return err
			}
			if len(matches) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No similar blobs found")
				return nil
			}
			rows := make([][]string, 0, len(matches))
			for _, match := range matches {
				rows = append(rows, []string{
					shortHash(match.Blob.Hash),
					strconv.Itoa(match.Blob.EntryCount),
					fmt.Sprintf("%.3f", match.Similarity),
				})
			}
			printRows(cmd.OutOrStdout(),
				[]string{"Hash", "Entries", "Similarity"},
				rows,
				1, 2,
			)
			return nil
		},
	}

	cmd.Flags().Float64Var(&threshold, "threshold", 0.5, "Minimum Jaccard similarity to report")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of matches")
	return cmd
}

func newBlobGCCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Delete blobs no language file references",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			deleted, err := store.GarbageCollect(cmd.Context(), dryRun)
			if err != nil {
				if errors.Is(err, catalog.ErrStoreBusy) {
					return fmt.Errorf("an apply run is in progress; retry once it completes")
				}
				return err
			}
			out := cmd.OutOrStdout()
			if dryRun {
				fmt.Fprintf(out, "Would delete %d unreferenced blob(s)\n", len(deleted))
			} else {
				fmt.Fprintf(out, "Deleted %d unreferenced blob(s)\n", len(deleted))
			}
			for _, hash := range deleted {
				fmt.Fprintf(out, "  %s\n", hash)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List candidates without deleting")
	return cmd
}
