// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sigil-dev/kgraph/internal/store"
	kgerr "github.com/sigil-dev/kgraph/pkg/errors"
)

func (c *cli) newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print store statistics as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withGraph(cmd, func(ctx context.Context, rt *runtime) error {
				st, err := rt.graph.Stats(ctx)
				if err != nil {
					return err
				}
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				if err := enc.Encode(newStatsView(st, rt.graph.CacheEnabled())); err != nil {
					return kgerr.Errorf(kgerr.CodeCLISetupFailure, "writing stats: %w", err)
				}
				return enc.Close()
			})
		},
	}
}

type statsView struct {
	Entities      int64               `yaml:"entities"`
	Relations     int64               `yaml:"relations"`
	Observations  int64               `yaml:"observations"`
	Embedded      int64               `yaml:"embedded"`
	Dimensions    int                 `yaml:"dimensions"`
	SizeBytes     int64               `yaml:"size_bytes"`
	Cache         string              `yaml:"cache"`
	EntityTypes   map[string]int64    `yaml:"entity_types,omitempty"`
	RelationTypes map[string]int64    `yaml:"relation_types,omitempty"`
	TopObserved   []store.EntityCount `yaml:"top_observed,omitempty"`
}

func newStatsView(st *store.Stats, cacheEnabled bool) statsView {
	cacheState := "disabled"
	if cacheEnabled {
		cacheState = "enabled"
	}
	return statsView{
		Entities:      st.Entities,
		Relations:     st.Relations,
		Observations:  st.Observations,
		Embedded:      st.Embedded,
		Dimensions:    st.Dimensions,
		SizeBytes:     st.SizeBytes,
		Cache:         cacheState,
		EntityTypes:   st.EntityTypes,
		RelationTypes: st.RelationTypes,
		TopObserved:   st.TopObserved,
	}
}

func (c *cli) newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Find relations and observations that reference missing entities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repair, _ := cmd.Flags().GetBool("repair")
			return c.withGraph(cmd, func(ctx context.Context, rt *runtime) error {
				rep, err := rt.graph.CheckConsistency(ctx, repair)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if rep.Consistent() {
					_, _ = fmt.Fprintln(out, "Graph is consistent.")
					return nil
				}
				verb := "Found"
				if rep.Repaired {
					verb = "Removed"
				}
				_, _ = fmt.Fprintf(out, "%s %d dangling relations and %d dangling observations.\n",
					verb, len(rep.DanglingRelations), len(rep.DanglingObservations))
				if !rep.Repaired {
					_, _ = fmt.Fprintln(out, "Run with --repair to remove them.")
				}
				return nil
			})
		},
	}
	cmd.Flags().Bool("repair", false, "delete dangling rows")
	return cmd
}

func (c *cli) newOrphansCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orphans",
		Short: "List or prune entities with no relations or observations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			olderThan, _ := cmd.Flags().GetDuration("older-than")
			prune, _ := cmd.Flags().GetBool("prune")
			return c.withGraph(cmd, func(ctx context.Context, rt *runtime) error {
				orphans, err := rt.graph.FindOrphans(ctx, olderThan)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(orphans) == 0 {
					_, _ = fmt.Fprintln(out, "No orphaned entities.")
					return nil
				}
				ids := make([]int64, len(orphans))
				for i, e := range orphans {
					ids[i] = e.ID
					_, _ = fmt.Fprintf(out, "%d\t%s\t%s\t%s\n", e.ID, e.Type, e.Name, e.CreatedAt.Format(time.RFC3339))
				}
				if !prune {
					_, _ = fmt.Fprintf(out, "%d orphaned entities. Run with --prune to delete them.\n", len(ids))
					return nil
				}
				deleted, err := rt.graph.PruneOrphans(ctx, ids)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(out, "Deleted %d orphaned entities.\n", len(deleted))
				return nil
			})
		},
	}
	cmd.Flags().Duration("older-than", 0, "only entities created at least this long ago")
	cmd.Flags().Bool("prune", false, "delete the listed entities")
	return cmd
}

func (c *cli) newBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup [path]",
		Short: "Write a JSON backup of the whole graph",
		Long:  "Write a JSON backup. A directory path (default: the current directory) receives a timestamped file.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) == 1 {
				path = args[0]
			}
			return c.withGraph(cmd, func(ctx context.Context, rt *runtime) error {
				info, err := rt.graph.Backup(ctx, path)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d entities, %d relations, %d observations, %d bytes)\n",
					info.Path, info.Counts.Entities, info.Counts.Relations, info.Counts.Observations, info.SizeBytes)
				return nil
			})
		},
	}
}

func (c *cli) newRestoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <path>",
		Short: "Replace the whole graph with the contents of a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireYes(cmd, "restore replaces every entity, relation and observation"); err != nil {
				return err
			}
			return c.withGraph(cmd, func(ctx context.Context, rt *runtime) error {
				info, err := rt.graph.Restore(ctx, args[0])
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Restored backup %s taken %s (%d entities, %d relations, %d observations)\n",
					info.BackupID, info.TakenAt.Format(time.RFC3339),
					info.Counts.Entities, info.Counts.Relations, info.Counts.Observations)
				return nil
			})
		},
	}
	cmd.Flags().Bool("yes", false, "confirm the restore")
	return cmd
}

func (c *cli) newClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every entity, relation and observation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireYes(cmd, "clear deletes the whole graph"); err != nil {
				return err
			}
			return c.withGraph(cmd, func(ctx context.Context, rt *runtime) error {
				counts, err := rt.graph.Clear(ctx)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d entities, %d relations and %d observations.\n",
					counts.Entities, counts.Relations, counts.Observations)
				return nil
			})
		},
	}
	cmd.Flags().Bool("yes", false, "confirm the deletion")
	return cmd
}

func (c *cli) newVacuumCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vacuum",
		Short: "Compact the database file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withGraph(cmd, func(ctx context.Context, rt *runtime) error {
				if err := rt.graph.Vacuum(ctx); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Vacuum complete.")
				return nil
			})
		},
	}
}

func requireYes(cmd *cobra.Command, what string) error {
	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		return nil
	}
	return kgerr.Errorf(kgerr.CodeCLIInputInvalid, "%s; pass --yes to confirm", what)
}
