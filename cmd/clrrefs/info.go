package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info <assembly>",
		Short: "Display image and metadata information",
		Long:  `Display the PE headers, metadata streams and assembly identity of a managed image.`,
		Args:  cobra.ArbitraryArgs,
		RunE:  a.runInfo,
	}
}

func (a *app) runInfo(cmd *cobra.Command, args []string) error {
	f, err := a.openFile(cmd, args)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Info()
	if err != nil {
		return fmt.Errorf("failed to read image info: %w", err)
	}

	out := a.stdout
	fmt.Fprintf(out, "File: %s\n", args[0])
	fmt.Fprintf(out, "Machine: 0x%04X\n", info.Machine)
	fmt.Fprintf(out, "Image Base: 0x%X\n", info.ImageBase)
	fmt.Fprintf(out, "Runtime: %d.%d\n", info.CLI.MajorRuntimeVersion, info.CLI.MinorRuntimeVersion)
	fmt.Fprintf(out, "CLI Flags: 0x%08X\n", info.CLI.Flags)
	fmt.Fprintf(out, "Metadata: offset 0x%X, version %s, %s\n", info.MetadataOffset, info.MetadataVersion, info.RuntimeVersion)
	fmt.Fprintf(out, "Tables Schema: %s (heap sizes 0x%02X)\n", info.TablesVersion, info.HeapSizes)
	fmt.Fprintf(out, "GUID Heap: %d entries\n", info.GUIDs)

	if info.Module != nil {
		fmt.Fprintf(out, "Module: %s\n", info.Module.Name)
		fmt.Fprintf(out, "MVID: %s\n", info.Module.MVID)
	}
	if info.Assembly != nil {
		culture := info.Assembly.Culture
		if culture == "" {
			culture = "neutral"
		}
		fmt.Fprintf(out, "Assembly: %s, Version=%s, Culture=%s\n", info.Assembly.Name, info.Assembly.Version, culture)
	}

	fmt.Fprintf(out, "\n%-10s %-10s %-10s %-10s %s\n", "SECTION", "RVA", "VSIZE", "OFFSET", "RAWSIZE")
	fmt.Fprintf(out, "%s\n", strings.Repeat("-", 60))
	for _, s := range info.Sections {
		fmt.Fprintf(out, "%-10s 0x%08X 0x%08X 0x%08X 0x%08X\n", s.Name, s.RVA, s.VirtualSize, s.Offset, s.RawSize)
	}

	fmt.Fprintf(out, "\n%-10s %-10s %s\n", "STREAM", "OFFSET", "SIZE")
	fmt.Fprintf(out, "%s\n", strings.Repeat("-", 60))
	for _, s := range info.Streams {
		fmt.Fprintf(out, "%-10s 0x%08X %d\n", s.Name, s.Offset, s.Size)
	}

	fmt.Fprintf(out, "\nReferenced Assemblies: %d\n", len(info.AssemblyRefs))
	for _, name := range info.AssemblyRefs {
		fmt.Fprintf(out, "  %s\n", name)
	}
	return nil
}
