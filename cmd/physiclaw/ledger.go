// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/physiclaw/physiclaw/executor"
	"github.com/physiclaw/physiclaw/lib/audit"
	"github.com/physiclaw/physiclaw/lib/persona"
)

func (a *app) toolsCmd(args []string) error {
	flagSet, _ := a.newFlagSet("tools")
	personaName := flagSet.StringP("persona", "p", "", "show only this persona")
	asJSON := flagSet.Bool("json", false, "print as JSON")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	personas := persona.All()
	if *personaName != "" {
		parsed, err := persona.Parse(*personaName)
		if err != nil {
			return err
		}
		personas = []persona.Persona{parsed}
	}

	if *asJSON {
		type entry struct {
			Persona  string             `json:"persona"`
			Mappings []executor.Mapping `json:"tools"`
		}
		entries := make([]entry, 0, len(personas))
		for _, p := range personas {
			entries = append(entries, entry{Persona: string(p), Mappings: executor.Mappings(p)})
		}
		encoder := json.NewEncoder(a.stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(entries)
	}

	writer := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "PERSONA\tTOOL\tCOMMAND")
	for _, p := range personas {
		for _, mapping := range executor.Mappings(p) {
			fmt.Fprintf(writer, "%s\t%s\t%s\n", p, mapping.Tool, strings.Join(mapping.Argv, " "))
		}
	}
	return writer.Flush()
}

func (a *app) metricsCmd(args []string) error {
	flagSet, configPath := a.newFlagSet("metrics")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	cfg, err := a.loadConfig(*configPath)
	if err != nil {
		return err
	}
	metrics, skipped, err := audit.Replay(audit.PathFor(cfg.DataDir))
	if err != nil {
		return fmt.Errorf("replaying audit log: %w", err)
	}
	if skipped > 0 {
		fmt.Fprintf(a.stderr, "physiclaw: skipped %d unreadable audit lines\n", skipped)
	}
	return metrics.WriteText(a.stdout)
}

func (a *app) auditCmd(args []string) error {
	if len(args) == 0 {
		return usagef("audit: expected verify or export")
	}
	switch args[0] {
	case "verify":
		return a.auditVerifyCmd(args[1:])
	case "export":
		return a.auditExportCmd(args[1:])
	default:
		return usagef("audit: unknown subcommand %q", args[0])
	}
}

func (a *app) auditVerifyCmd(args []string) error {
	flagSet, configPath := a.newFlagSet("audit verify")
	file := flagSet.String("file", "", "audit file to check (default the configured ledger)")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	path := *file
	if path == "" {
		cfg, err := a.loadConfig(*configPath)
		if err != nil {
			return err
		}
		path = audit.PathFor(cfg.DataDir)
	}

	report, err := audit.Verify(path)
	if err != nil {
		return fmt.Errorf("verifying %s: %w", path, err)
	}
	if !report.Intact() {
		return fmt.Errorf("%s: chain broken at line %d of %d: %s", path, report.BrokenAt, report.Lines, report.Reason)
	}
	fmt.Fprintf(a.stdout, "%s: %d records, chain intact\n", path, report.Lines)
	return nil
}

func (a *app) auditExportCmd(args []string) error {
	flagSet, configPath := a.newFlagSet("audit export")
	compressionName := flagSet.String("compression", "zstd", "none, zstd, or lz4")
	output := flagSet.StringP("output", "o", "", "output file (default stdout)")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	compression, err := audit.ParseCompression(*compressionName)
	if err != nil {
		return usagef("audit export: %v", err)
	}
	cfg, err := a.loadConfig(*configPath)
	if err != nil {
		return err
	}

	destination := a.stdout
	if *output != "" {
		file, err := os.OpenFile(*output, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
		if err != nil {
			return err
		}
		defer file.Close()
		destination = file
	}

	written, err := audit.Export(audit.PathFor(cfg.DataDir), destination, compression)
	if err != nil {
		return fmt.Errorf("exporting audit log: %w", err)
	}
	fmt.Fprintf(a.stderr, "physiclaw: exported %d bytes (%s)\n", written, compression)
	return nil
}

func (a *app) wipeCmd(args []string) error {
	flagSet, configPath := a.newFlagSet("wipe")
	all := flagSet.Bool("all", false, "confirm deletion of the data directory and audit log")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if !*all {
		return usagef("wipe: refusing to delete without --all")
	}
	cfg, err := a.loadConfig(*configPath)
	if err != nil {
		return err
	}
	removed, err := audit.Wipe(cfg.DataDir, *all)
	if err != nil {
		return err
	}
	if removed {
		fmt.Fprintf(a.stdout, "removed %s\n", cfg.DataDir)
	} else {
		fmt.Fprintf(a.stdout, "nothing to remove at %s\n", cfg.DataDir)
	}
	return nil
}
