package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aretw0/blueprint"
	"github.com/aretw0/blueprint/internal/cli"
	"github.com/aretw0/blueprint/internal/presentation/tui"
	"github.com/aretw0/blueprint/pkg/observability"
	"github.com/spf13/cobra"
)

func readScript(path string) (*cli.Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening script: %w", err)
	}
	defer f.Close()
	return cli.ParseScript(f)
}

// openEngine hydrates an engine for a single command.
func openEngine(ctx context.Context, a *app, id string) (*blueprint.Engine, error) {
	eng, err := blueprint.Open(ctx, id, a.backend.EngineOptions(a.cfg, a.logger)...)
	if err != nil {
		return nil, fmt.Errorf("error opening blueprint '%s': %w", id, err)
	}
	return eng, nil
}

var renameCmd = &cobra.Command{
	Use:   "rename <blueprint-id> <title>",
	Short: "Rename a blueprint",
	Args:  cobra.ExactArgs(2),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		eng, err := openEngine(cmd.Context(), a, args[0])
		if err != nil {
			return err
		}
		defer eng.Close()

		if err := eng.Rename(cmd.Context(), args[1]); err != nil {
			return fmt.Errorf("error renaming '%s': %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Renamed '%s' (version %d)\n", args[0], eng.Status().Version)
		return nil
	}),
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <blueprint-id>",
	Short: "Record a named snapshot of the saved graph",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		eng, err := openEngine(cmd.Context(), a, args[0])
		if err != nil {
			return err
		}
		defer eng.Close()

		label, _ := cmd.Flags().GetString("label")
		snap, err := eng.CreateSnapshot(cmd.Context(), label)
		if err != nil {
			return fmt.Errorf("error creating snapshot: %w", err)
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return printJSON(cmd.OutOrStdout(), snap)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (version %d, %d nodes)\n", snap.ID, snap.Version, len(snap.Graph.Nodes))
		return nil
	}),
}

var shareCmd = &cobra.Command{
	Use:   "share <blueprint-id>",
	Short: "Issue a share token",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		eng, err := openEngine(cmd.Context(), a, args[0])
		if err != nil {
			return err
		}
		defer eng.Close()

		ttl, _ := cmd.Flags().GetDuration("ttl")
		share, err := eng.CreateShare(cmd.Context(), ttl)
		if err != nil {
			return fmt.Errorf("error creating share: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), share.Token)
		if share.ExpiresAt != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", share.ExpiresAt.Local().Format(time.RFC3339))
		}
		return nil
	}),
}

var applyCmd = &cobra.Command{
	Use:   "apply <blueprint-id> <script.yaml>",
	Short: "Apply an edit script through the sync engine",
	Long: `Opens an editing session, runs each step of the script (mutations, undo/redo,
save, reload, rename) and flushes pending edits before exiting.`,
	Args: cobra.ExactArgs(2),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		id := args[0]
		script, err := readScript(args[1])
		if err != nil {
			return err
		}

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		mgr := a.backend.SessionManager(a.cfg, a.logger,
			blueprint.WithTelemetry(observability.NewLogSink(a.logger)))
		eng, err := mgr.Open(ctx, id)
		if err != nil {
			return fmt.Errorf("error opening blueprint '%s': %w", id, err)
		}

		results, applyErr := cli.Apply(ctx, eng, script, a.logger)
		// Release flushes, so it runs even after an interrupt.
		releaseErr := mgr.Release(context.WithoutCancel(ctx), id)
		st := eng.Status()

		out := cmd.OutOrStdout()
		for _, r := range results {
			line := r.Op
			if r.ID != "" {
				line += " " + r.ID
			}
			if r.Alias != "" {
				line += " as $" + r.Alias
			}
			fmt.Fprintln(out, line)
		}
		if applyErr != nil {
			if cli.IsInterrupted(applyErr) && ctx.Signal() != nil {
				cli.PrintSystemMessage(out, "Interrupted after %d steps.", len(results))
				return releaseErr
			}
			return applyErr
		}
		if releaseErr != nil {
			return releaseErr
		}
		if err := cli.SettledErr(st); err != nil {
			return err
		}

		cli.PrintSystemMessage(out, "%s: version %d, %d nodes, %d edges (%s)",
			id, st.Version, len(st.Graph.Nodes), len(st.Graph.Edges), tui.StatusLabel(out, st.Status))
		return nil
	}),
}

func init() {
	snapshotCmd.Flags().String("label", "", "Snapshot label")
	snapshotCmd.Flags().Bool("json", false, "Print JSON")
	shareCmd.Flags().Duration("ttl", 0, "Token lifetime (0 never expires)")

	rootCmd.AddCommand(renameCmd, snapshotCmd, shareCmd, applyCmd)
}
