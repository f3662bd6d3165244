package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"document-chat/internal/store"
)

var (
	exportStore string
	exportOut   string
	importIn    string
	importStore string
)

var exportCmd = &cobra.Command{
	Use:   "export --store <name> [--out file]",
	Short: "Write a store to a portable snapshot file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context(), GetConfig())
		if err != nil {
			return err
		}
		defer a.close()
		m, err := a.snapshots()
		if err != nil {
			return err
		}
		if err := store.ValidateName(exportStore); err != nil {
			return err
		}

		out := exportOut
		if out == "" {
			out = m.ExportPath(exportStore)
		}
		if err := m.Export(cmd.Context(), exportStore, out); err != nil {
			return err
		}
		cmd.Printf("Exported %s to %s\n", exportStore, out)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import --in <file> [--store name]",
	Short: "Restore a store from a snapshot file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context(), GetConfig())
		if err != nil {
			return err
		}
		defer a.close()
		m, err := a.snapshots()
		if err != nil {
			return err
		}

		name := importStore
		if name == "" {
			name = store.NameFromFile(strings.TrimSuffix(importIn, ".gz"))
		}
		if err := store.ValidateName(name); err != nil {
			return err
		}
		h, err := m.Import(cmd.Context(), name, importIn)
		if err != nil {
			return err
		}
		cmd.Printf("Imported %s (%d chunks) from %s\n", h.Name(), h.Len(), importIn)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportStore, "store", "s", "", "name of the store to export")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "snapshot file (default <store_root>/<name>.chromem)")
	_ = exportCmd.MarkFlagRequired("store")

	importCmd.Flags().StringVarP(&importIn, "in", "i", "", "snapshot file to restore")
	importCmd.Flags().StringVarP(&importStore, "store", "s", "", "name of the exported store (default derived from the file name)")
	_ = importCmd.MarkFlagRequired("in")

	rootCmd.AddCommand(exportCmd, importCmd)
}
