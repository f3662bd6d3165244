package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"document-chat/internal/models"
	"document-chat/internal/rag"
)

var askStore string

var askCmd = &cobra.Command{
	Use:   "ask --store <name> <question>",
	Short: "Answer one question from a previously built store",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := GetConfig()

		a, err := buildApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		h, err := a.store.Load(ctx, askStore)
		if err != nil {
			return err
		}
		if h == nil {
			return fmt.Errorf("%w: no index store named %q, run ingest first", models.ErrNotFound, askStore)
		}

		answer, err := a.rag.Query(ctx, a.store, h, strings.Join(args, " "), cfg.RAG.TopK)
		if err != nil {
			return err
		}
		printAnswer(cmd.OutOrStdout(), answer)
		return nil
	},
}

func init() {
	askCmd.Flags().StringVarP(&askStore, "store", "s", "", "name of the store to query")
	_ = askCmd.MarkFlagRequired("store")
	rootCmd.AddCommand(askCmd)
}

var (
	headingColor = color.New(color.FgCyan, color.Bold)
	sourceColor  = color.New(color.FgHiBlack)
	pageColor    = color.New(color.FgYellow)
)

func printAnswer(w io.Writer, answer models.Answer) {
	fmt.Fprintln(w, answer.Text)
	if len(answer.SupportingChunks) == 0 {
		return
	}
	fmt.Fprintln(w)
	headingColor.Fprintln(w, "Sources:")
	for _, c := range answer.SupportingChunks {
		fmt.Fprintf(w, "- %s %s\n",
			sourceColor.Sprintf("%s...", rag.Preview(c.Content, models.SourcePreviewLen)),
			pageColor.Sprintf("(%s)", c.PageLabel()))
	}
}
