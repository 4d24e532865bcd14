package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newTablesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tables <assembly>",
		Short: "List the metadata tables present in the image",
		Args:  cobra.ArbitraryArgs,
		RunE:  a.runTables,
	}
}

func (a *app) runTables(cmd *cobra.Command, args []string) error {
	f, err := a.openFile(cmd, args)
	if err != nil {
		return err
	}
	defer f.Close()

	layout, err := f.Tables()
	if err != nil {
		return fmt.Errorf("failed to read metadata tables: %w", err)
	}

	out := a.stdout
	fmt.Fprintf(out, "%-4s %-24s %-8s %-8s %s\n", "ID", "TABLE", "ROWS", "ROWSIZE", "OFFSET")
	fmt.Fprintf(out, "%s\n", strings.Repeat("-", 60))

	var rows uint64
	kinds := layout.Kinds()
	for _, k := range kinds {
		t := layout.Table(k)
		fmt.Fprintf(out, "0x%02X %-24s %-8d %-8d 0x%08X\n", uint8(k), k, t.Rows, t.RowSize, t.Offset)
		rows += uint64(t.Rows)
	}

	fmt.Fprintf(out, "\nTotal: %d tables, %d rows\n", len(kinds), rows)
	return nil
}
