package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nicobenz/flowpertoire/application/queries"
	"github.com/nicobenz/flowpertoire/application/seed"
	"github.com/nicobenz/flowpertoire/domain/core/entities"
	"github.com/nicobenz/flowpertoire/domain/core/valueobjects"
	"github.com/nicobenz/flowpertoire/infrastructure/di"
)

type opener func(ctx context.Context) (*di.Container, func(), error)

// cli carries the state shared by the subcommands
type cli struct {
	open      opener
	container *di.Container
	cleanup   func()

	userID        int64
	structureOnly bool
}

func newRootCmd(open opener) *cobra.Command {
	c := &cli{open: open}

	rootCmd := &cobra.Command{
		Use:           "treectl",
		Short:         "Seed and inspect skill forests",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.userID <= 0 {
				return fmt.Errorf("--user must be positive, got %d", c.userID)
			}
			container, cleanup, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			c.container, c.cleanup = container, cleanup
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.cleanup != nil {
				c.cleanup()
			}
		},
	}
	rootCmd.PersistentFlags().Int64Var(&c.userID, "user", int64(valueobjects.DefaultUserID), "User whose forest is used")

	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the demo forest",
		Args:  cobra.NoArgs,
		RunE:  c.runSeed,
	}
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List root trees",
		Args:  cobra.NoArgs,
		RunE:  c.runList,
	}
	showCmd := &cobra.Command{
		Use:   "show <slug>",
		Short: "Show a tree's nodes with aggregate ratings",
		Args:  cobra.ExactArgs(1),
		RunE:  c.runShow,
	}
	elementsCmd := &cobra.Command{
		Use:   "elements <slug>",
		Short: "Print a tree's projected elements as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  c.runElements,
	}
	elementsCmd.Flags().BoolVar(&c.structureOnly, "structure-only", false, "Omit fills")

	rootCmd.AddCommand(seedCmd, listCmd, showCmd, elementsCmd)
	return rootCmd
}

func (c *cli) user() valueobjects.UserID { return valueobjects.UserID(c.userID) }

func (c *cli) listTrees(ctx context.Context, userID valueobjects.UserID) ([]entities.RootTree, error) {
	result, err := c.container.QueryBus.Ask(ctx, queries.ListTreesQuery{UserID: userID})
	if err != nil {
		return nil, err
	}
	return result.([]entities.RootTree), nil
}

func (c *cli) runSeed(cmd *cobra.Command, args []string) error {
	created, err := seed.Demo(cmd.Context(), c.container.CommandBus, c.listTrees, c.user(), c.container.Logger)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(created) == 0 {
		fmt.Fprintln(out, "Demo forest already present")
		return nil
	}
	for _, name := range created {
		fmt.Fprintf(out, "Created %s\n", name)
	}
	return nil
}

func (c *cli) runList(cmd *cobra.Command, args []string) error {
	trees, err := c.listTrees(cmd.Context(), c.user())
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSLUG\tNAME")
	for _, t := range trees {
		fmt.Fprintf(w, "%d\t%s\t%s\n", t.ID, t.Slug, t.Name)
	}
	return w.Flush()
}

func (c *cli) runShow(cmd *cobra.Command, args []string) error {
	result, err := c.container.QueryBus.Ask(cmd.Context(), queries.GetTreeQuery{
		UserID: c.user(),
		Tree:   queries.TreeRef{Slug: args[0]},
	})
	if err != nil {
		return err
	}
	view := result.(queries.TreeView)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%s)\n", view.Tree.Name, view.Tree.Slug)
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tLABEL\tRATING\tSTATUS\tAGGREGATE")
	for _, n := range view.Nodes {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			n.Node.ID,
			n.Node.Variant.Kind(),
			n.Label,
			ratingText(n.Rating),
			statusText(n.Status),
			aggregateText(n.AggregateRating),
		)
	}
	return w.Flush()
}

func (c *cli) runElements(cmd *cobra.Command, args []string) error {
	result, err := c.container.QueryBus.Ask(cmd.Context(), queries.GetElementsQuery{
		UserID:        c.user(),
		Tree:          queries.TreeRef{Slug: args[0]},
		StructureOnly: c.structureOnly,
	})
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), result)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func ratingText(r *valueobjects.Rating) string {
	if r == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *r)
}

func statusText(s *valueobjects.SkillStatus) string {
	if s == nil {
		return "-"
	}
	return string(*s)
}

func aggregateText(v *float64) string {
	if v == nil {
		return "-"
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", *v), "0"), ".")
}
