package main

import (
	"bufio"
	"fmt"
	"os"
	"slices"
	"strconv"
	"text/tabwriter"
	"time"

	"libscout/internal/analysis"
	"libscout/internal/graph"
	"libscout/internal/pipeline"
	"libscout/internal/storage"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newScanCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "scan [roots...]",
		Short: "Build the corpus and refresh the fact cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			cp, stats, err := pipeline.New(a.cfg, a.logger).Scan(cmd.Context(), args...)
			if err != nil {
				return err
			}
			w := out(cmd)
			fmt.Fprintf(w, "📦 %s archives, %s facts, %s distinct classes\n",
				humanize.Comma(int64(cp.Len())),
				humanize.Comma(int64(cp.FactCount())),
				humanize.Comma(int64(cp.Trie().Len()-1)))
			fmt.Fprintf(w, "   cached %d, extracted %d, skipped %d in %v\n",
				stats.Cached, stats.Scanned, stats.Skipped, time.Since(start).Round(time.Millisecond))
			if path := pipeline.CachePath(a.cfg); path != "" {
				fmt.Fprintf(w, "💾 Cache: %s\n", path)
			}
			return nil
		},
	}
}

func newAnalyzeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze [roots...]",
		Short: "Run the full analysis and save the graph to the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			res, err := pipeline.New(a.cfg, a.logger).Run(cmd.Context(), args...)
			if err != nil {
				return err
			}
			s := res.Repository.Stats()
			w := out(cmd)
			fmt.Fprintf(w, "📦 %s archives, %s facts\n",
				humanize.Comma(int64(res.Corpus.Len())), humanize.Comma(int64(res.Corpus.FactCount())))
			fmt.Fprintf(w, "🧩 %d clusters identified, %d after merging (%d passes)\n",
				res.Identified, res.Merge.Remaining, res.Merge.Passes)
			fmt.Fprintf(w, "📚 %d libraries (%d simple, %d package, %d phantom), %d versions, %d dependencies\n",
				len(res.Repository.Libraries()), s.Simple, s.Package, s.Phantom, s.Versions, s.Edges)
			fmt.Fprintf(w, "✅ Saved to %s in %v\n", a.cfg.Storage.DB, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "List the libraries stored in the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			meta, err := store.Meta(ctx)
			if err != nil {
				return err
			}
			libs, err := store.FindNodesByKind(ctx, graph.NodeLibrary)
			if err != nil {
				return err
			}
			slices.SortStableFunc(libs, func(x, y *graph.Node) int {
				return attrInt(y, "jars") - attrInt(x, "jars")
			})

			w := out(cmd)
			if at := meta["analyzed_at"]; at != "" {
				fmt.Fprintf(w, "Analyzed %s: %s archives, threshold %s, %s fingerprints\n\n",
					at, meta["archives"], meta["compatibility_threshold"], meta["fingerprint_mode"])
			}
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tKIND\tJARS\tVERSIONS\tCLASSES")
			for _, l := range libs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					l.ID, l.Name, l.Attrs["kind"], l.Attrs["jars"], l.Attrs["versions"], l.Attrs["classes"])
			}
			return tw.Flush()
		},
	}
}

func attrInt(n *graph.Node, key string) int {
	v, _ := strconv.Atoi(n.Attrs[key])
	return v
}

func newImpactCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "impact <node-id>",
		Short: "List what depends on a library, version or archive",
		Long: "List the direct and transitive dependants of a stored node.\n" +
			"Node IDs look like lib:<id>, ver:<lib>.<n> or jar:<hash>.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			g, err := store.LoadGraph(cmd.Context())
			if err != nil {
				return err
			}
			report, err := analysis.NewAnalyzer(g).Dependants(args[0])
			if err != nil {
				return err
			}

			w := out(cmd)
			fmt.Fprintf(w, "🔍 Impact of %s (%s)\n", report.Target.ID, report.Target.Name)
			fmt.Fprintf(w, "Direct dependants: %d\n", len(report.DirectlyAffected))
			for _, n := range report.DirectlyAffected {
				fmt.Fprintf(w, "  - %s\t%s\n", n.ID, n.Name)
			}
			fmt.Fprintf(w, "Transitive dependants: %d\n", len(report.IndirectlyAffected))
			for _, n := range report.IndirectlyAffected {
				fmt.Fprintf(w, "  - %s\t%s\n", n.ID, n.Name)
			}
			return nil
		},
	}
}

func newExportCmd(a *app) *cobra.Command {
	var formatName, outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the stored graph as CBOR, JSON or YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := storage.ParseFormat(formatName)
			if err != nil {
				return err
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			g, err := store.LoadGraph(cmd.Context())
			if err != nil {
				return err
			}

			if outPath == "" || outPath == "-" {
				return storage.WriteSnapshot(out(cmd), g, format)
			}
			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", outPath, err)
			}
			bw := bufio.NewWriter(f)
			if err := storage.WriteSnapshot(bw, g, format); err != nil {
				f.Close()
				return err
			}
			if err := bw.Flush(); err != nil {
				f.Close()
				return fmt.Errorf("failed to write %s: %w", outPath, err)
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to write %s: %w", outPath, err)
			}
			a.logger.Info("graph exported", "path", outPath, "format", format, "nodes", len(g.Nodes))
			return nil
		},
	}
	cmd.Flags().StringVar(&formatName, "format", string(storage.FormatJSON), "Export format (cbor, json, yaml)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (stdout when empty)")
	return cmd
}
