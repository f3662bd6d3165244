package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"document-chat/internal/helper"
	"document-chat/internal/models"
	"document-chat/internal/parser"
	"document-chat/internal/store"
)

var ingestDryRun bool

var ingestCmd = &cobra.Command{
	Use:   "ingest <file|glob>...",
	Short: "Build one index store per document",
	Long: `Parse, chunk and embed each document, writing a store named after the file.
Patterns such as "docs/**/*.pdf" are expanded. With --dry-run the chunks are
printed instead of being embedded.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "print the chunks, do not embed or store them")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := GetConfig()

	files, err := expandInputs(args)
	if err != nil {
		return err
	}

	p := parser.New(cfg)
	var st *store.Store
	if !ingestDryRun {
		a, err := buildApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()
		st = a.store
	}

	var errs []error
	for _, file := range files {
		start := time.Now()
		chunks, err := p.Ingest(file)
		if err != nil {
			log.Error().Err(err).Str("file", file).Msg("Error parsing document")
			errs = append(errs, err)
			continue
		}
		name := store.NameFromFile(file)

		if ingestDryRun {
			cmd.Printf("%s -> %s (%d chunks)\n", file, name, len(chunks))
			helper.PrettyPrint(cmd.OutOrStdout(), chunks)
			continue
		}

		h, err := st.Build(ctx, chunks, name)
		if err != nil {
			log.Error().Err(err).Str("file", file).Msg("Error building store")
			errs = append(errs, fmt.Errorf("%s: %w", file, err))
			continue
		}
		cmd.Printf("%s -> %s (%d chunks, %s)\n", file, h.Name(), h.Len(), time.Since(start).Round(time.Millisecond))
	}
	return errors.Join(errs...)
}

// expandInputs resolves plain paths and doublestar patterns into a sorted,
// de-duplicated list of regular files.
func expandInputs(args []string) ([]string, error) {
	seen := map[string]bool{}
	var files []string
	for _, arg := range args {
		matches := []string{arg}
		if strings.ContainsAny(arg, "*?[{") {
			if !doublestar.ValidatePathPattern(arg) {
				return nil, fmt.Errorf("%w: invalid pattern %q", models.ErrValidation, arg)
			}
			var err error
			matches, err = doublestar.FilepathGlob(arg, doublestar.WithFilesOnly())
			if err != nil {
				return nil, fmt.Errorf("failed to expand %q: %w", arg, err)
			}
			if len(matches) == 0 {
				return nil, fmt.Errorf("%w: no files match %q", models.ErrNotFound, arg)
			}
		} else if info, err := os.Stat(arg); err == nil && info.IsDir() {
			return nil, fmt.Errorf("%w: %s is a directory, use a pattern such as %s", models.ErrValidation, arg, filepath.Join(arg, "**", "*"))
		}
		for _, m := range matches {
			m = filepath.Clean(m)
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	slices.Sort(files)
	return files, nil
}
