package commands

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/klabast/wb-services/signup-calendar/internal/ledger"
)

func newExportCmd(o *rootOptions) *cobra.Command {
	var variantName, format, out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a CSV or JSON export of the ledger",
		Long: `Loads the ledger from the configured backend and writes an export to
stdout, or to the file named by --out. "--out auto" picks the dated
default file name.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			variant, ok := ledger.ParseVariant(variantName)
			if !ok {
				return fmt.Errorf("unknown variant %q (want backend or public)", variantName)
			}
			if format != "csv" && format != "json" {
				return fmt.Errorf("unknown format %q (want csv or json)", format)
			}

			store, l, err := openLedger(cmd.Context(), o.cfg, o.log)
			if err != nil {
				return err
			}
			defer store.Close()

			var body []byte
			if format == "csv" {
				body = []byte(l.ExportCSV(variant))
			} else if body, err = l.ExportJSON(variant); err != nil {
				return err
			}

			switch out {
			case "", "-":
				return writeAll(cmd.OutOrStdout(), body)
			case "auto":
				out = ledger.ExportFilename(o.cfg.ArtifactPrefix, variant, time.Now(), format)
			}
			if err := os.WriteFile(out, body, 0644); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Export written: %s\n", out)
			return nil
		},
	}

	cmd.Flags().StringVar(&variantName, "variant", string(ledger.Full), "export variant: backend or public")
	cmd.Flags().StringVar(&format, "format", "csv", "export format: csv or json")
	cmd.Flags().StringVarP(&out, "out", "o", "", `output file ("auto" for the dated default name)`)
	return cmd
}

func writeAll(w io.Writer, body []byte) error {
	if _, err := w.Write(body); err != nil {
		return err
	}
	if len(body) > 0 && body[len(body)-1] != '\n' {
		_, err := io.WriteString(w, "\n")
		return err
	}
	return nil
}
