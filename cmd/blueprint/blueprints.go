package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/aretw0/blueprint"
	"github.com/aretw0/blueprint/internal/cli"
	"github.com/aretw0/blueprint/internal/presentation/graph"
	"github.com/aretw0/blueprint/internal/presentation/tui"
	"github.com/aretw0/blueprint/internal/validator"
	"github.com/spf13/cobra"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && tui.IsInteractive(f)
}

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List blueprints",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		list, err := a.backend.Gateway.ListBlueprints(cmd.Context())
		if err != nil {
			return fmt.Errorf("error listing blueprints: %w", err)
		}
		out := cmd.OutOrStdout()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(out, list)
		}
		if len(list) == 0 {
			fmt.Fprintln(out, "No blueprints found.")
			return nil
		}

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTITLE\tSTATUS\tVERSION\tUPDATED")
		for _, b := range list {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
				b.ID, b.Title, tui.BlueprintStatusLabel(out, b.Status), b.AutosaveVersion,
				b.UpdatedAt.Local().Format("2006-01-02 15:04"))
		}
		return tw.Flush()
	}),
}

var showCmd = &cobra.Command{
	Use:   "show <blueprint-id>",
	Short: "Show a blueprint and its graph",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		h, err := a.backend.Gateway.GetBlueprint(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("error loading blueprint '%s': %w", args[0], err)
		}
		out := cmd.OutOrStdout()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(out, h)
		}
		plain, _ := cmd.Flags().GetBool("plain")
		render := tui.NewRenderer(!plain && isTerminal(out))
		text, err := render(tui.BlueprintMarkdown(h))
		if err != nil {
			return err
		}
		fmt.Fprint(out, text)
		return nil
	}),
}

var graphCmd = &cobra.Command{
	Use:   "graph <blueprint-id>",
	Short: "Export the blueprint graph as a Mermaid diagram",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		h, err := a.backend.Gateway.GetBlueprint(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("error loading blueprint '%s': %w", args[0], err)
		}
		var overlay *graph.Overlay
		if selected, _ := cmd.Flags().GetString("select"); selected != "" {
			overlay = &graph.Overlay{SelectedID: selected}
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(h.Graph, overlay))
		return nil
	}),
}

var checkCmd = &cobra.Command{
	Use:   "check <blueprint-id>",
	Short: "Check the saved graph for consistency",
	Long:  `Crawls the graph from its root and reports dangling edges, duplicate ids and unreachable nodes.`,
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		h, err := a.backend.Gateway.GetBlueprint(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("error loading blueprint '%s': %w", args[0], err)
		}
		if err := validator.ValidateGraph(h.Graph); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Graph is valid! ✅")
		return nil
	}),
}

var newCmd = &cobra.Command{
	Use:   "new [title]",
	Short: "Create a blueprint, optionally seeded by an edit script",
	Args:  cobra.MaximumNArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		ctx := cmd.Context()
		var extra []blueprint.Option
		if len(args) == 1 {
			extra = append(extra, blueprint.WithTitle(args[0]))
		}
		eng := blueprint.New(a.backend.EngineOptions(a.cfg, a.logger, extra...)...)
		defer eng.Close()

		if path, _ := cmd.Flags().GetString("script"); path != "" {
			script, err := readScript(path)
			if err != nil {
				return err
			}
			if _, err := cli.Apply(ctx, eng, script, a.logger); err != nil {
				return err
			}
		}
		if err := eng.Save(ctx); err != nil {
			return fmt.Errorf("error saving blueprint: %w", err)
		}
		if err := eng.Flush(ctx); err != nil {
			return err
		}
		st := eng.Status()
		if err := cli.SettledErr(st); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), st.BlueprintID)
		return nil
	}),
}

var rmCmd = &cobra.Command{
	Use:   "rm <blueprint-id>...",
	Short: "Remove one or more blueprints",
	Args:  cobra.MinimumNArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		var errs []error
		for _, id := range args {
			if err := a.backend.Gateway.DeleteBlueprint(cmd.Context(), id); err != nil {
				errs = append(errs, fmt.Errorf("error removing '%s': %w", id, err))
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed blueprint '%s'\n", id)
		}
		return errors.Join(errs...)
	}),
}

var dupCmd = &cobra.Command{
	Use:   "dup <blueprint-id>",
	Short: "Duplicate a blueprint",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		id, err := a.backend.Gateway.DuplicateBlueprint(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("error duplicating '%s': %w", args[0], err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	}),
}

func init() {
	lsCmd.Flags().Bool("json", false, "Print JSON")
	showCmd.Flags().Bool("json", false, "Print JSON")
	showCmd.Flags().Bool("plain", false, "Print markdown without terminal styling")
	graphCmd.Flags().String("select", "", "Highlight this node id")
	newCmd.Flags().String("script", "", "Edit script applied before the first save")

	rootCmd.AddCommand(lsCmd, showCmd, graphCmd, checkCmd, newCmd, rmCmd, dupCmd)
}
