package commands

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"document-chat/internal/session"
	"document-chat/internal/tui"
)

var chatStore string

var chatCmd = &cobra.Command{
	Use:   "chat [file]",
	Short: "Open the chat screen, optionally indexing a document first",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatStore, "store", "s", "", "open a previously built store")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := GetConfig()

	// the screen belongs to the TUI from here on
	if err := redirectLogs(cfg); err != nil {
		return err
	}

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	s := session.New(ctx, a.pipeline)
	defer s.Close()

	switch {
	case len(args) == 1:
		cmd.Printf("Processing %s... This might take a moment.\n", args[0])
		if err := s.Upload(ctx, args[0]); err != nil {
			return err
		}
	case chatStore != "":
		if err := s.Open(ctx, chatStore); err != nil {
			return err
		}
	}

	log.Info().Str("session", s.ID()).Str("document", s.Document()).Msg("Chat started")
	return tui.Run(ctx, s)
}
