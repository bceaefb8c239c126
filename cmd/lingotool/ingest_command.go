package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"lingotool/internal/catalog"
	"lingotool/internal/config"
	"lingotool/internal/hashfs"
	"lingotool/internal/lang"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var artifactPath string
	var artifactType string
	var modID string
	var displayName string
	var version string
	var locale string
	var namespace string

	cmd := &cobra.Command{
		Use:   "ingest <entries-file>",
		Short: "Register a language file's content in the catalog",
		Long: "Stores the translations from a JSON entries file as a content-addressed\n" +
			"blob and records the owning artifact, container, and language file.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(artifactPath) == "" {
				return fmt.Errorf("--artifact is required")
			}
			if strings.TrimSpace(modID) == "" {
				return fmt.Errorf("--mod-id is required")
			}
			if strings.TrimSpace(locale) == "" {
				return fmt.Errorf("--locale is required")
			}

			entries, err := loadEntriesFile(args[0])
			if err != nil {
				return err
			}

			resolvedPath, err := config.ExpandPath(artifactPath)
			if err != nil {
				return fmt.Errorf("resolve artifact path: %w", err)
			}
			kind, contentHash, size, err := describeArtifact(resolvedPath, artifactType)
			if err != nil {
				return err
			}

			ns := strings.TrimSpace(namespace)
			if ns == "" {
				ns = strings.TrimSpace(modID)
			}
			normalizedLocale := lang.NormalizeLocale(locale)
			if err := lang.ValidateLocale(normalizedLocale); err != nil {
				return err
			}
			if err := lang.ValidateNamespace(ns); err != nil {
				return err
			}

			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}

			artifactID, err := store.UpsertArtifact(cmd.Context(), kind, resolvedPath, contentHash, size)
			if err != nil {
				return err
			}
			containerID, err := store.UpsertContainer(cmd.Context(), artifactID, "mod", modID, displayName, version, ns)
			if err != nil {
				return err
			}

			blobHash, created, err := store.StoreBlob(cmd.Context(), entries)
			if err != nil {
				return err
			}
			memberPath := lang.MemberPath(ns, normalizedLocale)
			if _, err := store.UpsertLanguageFile(cmd.Context(), containerID, normalizedLocale, ns, memberPath, blobHash, len(entries)); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Container: %s\n", containerID)
			fmt.Fprintf(out, "Blob:      %s", blobHash)
			if !created {
				fmt.Fprint(out, " (deduplicated)")
			}
			fmt.Fprintln(out)
			fmt.Fprintf(out, "Member:    %s\n", memberPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&artifactPath, "artifact", "", "Path to the owning archive or directory")
	cmd.Flags().StringVar(&artifactType, "artifact-type", "", "Artifact type (archive or directory; inferred when omitted)")
	cmd.Flags().StringVar(&modID, "mod-id", "", "Container mod identifier")
	cmd.Flags().StringVar(&displayName, "display-name", "", "Human-readable container name")
	cmd.Flags().StringVar(&version, "version", "", "Container version")
	cmd.Flags().StringVarP(&locale, "locale", "l", "", "Locale of the language file (e.g. de_de)")
	cmd.Flags().StringVarP(&namespace, "namespace", "n", "", "Namespace of the language file (defaults to the mod id)")
	return cmd
}

func describeArtifact(path, explicitType string) (catalog.ArtifactType, string, int64, error) {
	info, statErr := os.Stat(path)

	kind := catalog.ArtifactType(strings.ToLower(strings.TrimSpace(explicitType)))
	switch kind {
	case catalog.ArtifactArchive, catalog.ArtifactDirectory:
	case "":
		if statErr != nil {
			return "", "", 0, fmt.Errorf("inspect artifact %q: %w (pass --artifact-type to register it unseen)", path, statErr)
		}
		if info.IsDir() {
			kind = catalog.ArtifactDirectory
		} else {
			kind = catalog.ArtifactArchive
		}
	default:
		return "", "", 0, fmt.Errorf("unknown artifact type %q", explicitType)
	}

	var contentHash string
	var size int64
	if statErr == nil {
		if info.IsDir() {
			sig, err := hashfs.DirectorySignature(path)
			if err != nil {
				return "", "", 0, err
			}
			contentHash = sig
		} else {
			sum, err := hashfs.HashFile(path)
			if err != nil {
				return "", "", 0, err
			}
			contentHash = sum
			size = info.Size()
		}
	}
	return kind, contentHash, size, nil
}
