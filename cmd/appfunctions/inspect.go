package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ggoodman/appfunctions-go/functions"
	"github.com/ggoodman/appfunctions-go/jsondata"
	"github.com/ggoodman/appfunctions-go/mcpbridge"
)

func newListCmd(root *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list [package]",
		Short: "List catalog functions and their enabled state",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := root.runtime(ctx, cmd, nil)
			if err != nil {
				return err
			}
			defer rt.Close()

			pkg := ""
			if len(args) == 1 {
				pkg = args[0]
			}
			type row struct {
				Package     string `json:"packageName"`
				ID          string `json:"id"`
				State       string `json:"state"`
				Enabled     bool   `json:"enabled"`
				Parameters  int    `json:"parameters"`
				Description string `json:"description,omitempty"`
			}
			var rows []row
			for _, meta := range rt.svc.List(pkg) {
				state, err := rt.svc.EnabledState(ctx, meta.PackageName, meta.ID)
				if err != nil {
					return err
				}
				enabled, err := rt.svc.IsEnabled(ctx, meta.PackageName, meta.ID)
				if err != nil {
					return err
				}
				rows = append(rows, row{meta.PackageName, meta.ID, state.String(), enabled, len(meta.Parameters), meta.Description})
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, rows)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PACKAGE\tID\tENABLED\tSTATE\tPARAMS\tDESCRIPTION")
			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%d\t%s\n", r.Package, r.ID, r.Enabled, r.State, r.Parameters, r.Description)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func newSchemaCmd(root *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "schema <package> <function>",
		Short: "Print a function as an MCP tool, or its metadata document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := root.runtime(cmd.Context(), cmd, nil)
			if err != nil {
				return err
			}
			defer rt.Close()

			meta, ok := rt.svc.Get(args[0], args[1])
			if !ok {
				return fmt.Errorf("function %s/%s not found in %s", args[0], args[1], rt.cfg.CatalogDir)
			}
			out := cmd.OutOrStdout()
			switch format {
			case "tool":
				tool, err := mcpbridge.New(rt.svc).Tool(meta)
				if err != nil {
					return err
				}
				return writeJSON(out, tool)
			case "json":
				return writeJSON(out, meta)
			case "yaml":
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(meta); err != nil {
					return err
				}
				return enc.Close()
			default:
				return fmt.Errorf("unknown format %q (want tool, json or yaml)", format)
			}
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "tool", "output format: tool, json or yaml")
	return cmd
}

func newValidateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <package> <function> <arguments.json|->",
		Short: "Check a JSON argument document against a function's parameters",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := root.runtime(cmd.Context(), cmd, nil)
			if err != nil {
				return err
			}
			defer rt.Close()

			spec, err := rt.svc.ParametersSpec(args[0], args[1])
			if err != nil {
				return err
			}
			raw, err := readInput(cmd.InOrStdin(), args[2])
			if err != nil {
				return err
			}
			params, err := jsondata.Decode(spec, raw)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %s\n", params)
			return nil
		},
	}
}

func newStateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "state <package> <function> [default|enabled|disabled]",
		Short: "Show or change a function's enabled state",
		Long: `state prints the enabled state of a function, or sets it when a state is
given. Without a Redis URL the state lives only as long as the process, so
setting it is mostly useful together with --redis-url.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := root.runtime(ctx, cmd, nil)
			if err != nil {
				return err
			}
			defer rt.Close()

			pkg, id := args[0], args[1]
			if len(args) == 3 {
				state, err := functions.ParseEnabledState(args[2])
				if err != nil {
					return err
				}
				if err := rt.svc.SetEnabled(ctx, pkg, id, state); err != nil {
					return err
				}
			}
			state, err := rt.svc.EnabledState(ctx, pkg, id)
			if err != nil {
				return err
			}
			enabled, err := rt.svc.IsEnabled(ctx, pkg, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s/%s: %s (enabled=%t)\n", pkg, id, state, enabled)
			return nil
		},
	}
}

func readInput(stdin io.Reader, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(name)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
