package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"owl-location/internal/client"
	"owl-location/internal/domain"
	"owl-location/internal/query"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewTreeCommand creates the tree command.
func NewTreeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "tree <id>",
		Short:        "Print a location and its subtree",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.NewLocationsClient(rootOpts.Server, rootOpts.Timeout, zap.NewNop())
			node, err := c.GetTree(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if rootOpts.Format == "json" {
				return writeJSONOut(cmd.OutOrStdout(), node)
			}
			printTree(cmd.OutOrStdout(), node)
			return nil
		},
	}
}

// ListOptions holds flags for the list command.
type ListOptions struct {
	Search string
	Roots  bool
	Order  []string // field:DIR
	Limit  int
	Offset int
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{}

	cmd := &cobra.Command{
		Use:          "list",
		Short:        "List locations, optionally as root trees",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			order, err := parseOrderFlags(opts.Order)
			if err != nil {
				return err
			}
			params := client.ListParams{
				Search:   opts.Search,
				Order:    order,
				Paginate: true,
				Limit:    opts.Limit,
				Offset:   opts.Offset,
			}

			c := client.NewLocationsClient(rootOpts.Server, rootOpts.Timeout, zap.NewNop())
			out := cmd.OutOrStdout()
			if opts.Roots {
				trees, meta, err := c.ListTrees(cmd.Context(), params)
				if err != nil {
					return err
				}
				if rootOpts.Format == "json" {
					return writeJSONOut(out, map[string]any{"data": trees, "metadata": meta})
				}
				for _, t := range trees {
					printTree(out, t)
				}
				printMeta(out, meta)
				return nil
			}

			items, meta, err := c.List(cmd.Context(), params)
			if err != nil {
				return err
			}
			if rootOpts.Format == "json" {
				return writeJSONOut(out, map[string]any{"data": items, "metadata": meta})
			}
			for _, l := range items {
				fmt.Fprintln(out, formatLocation(l))
			}
			printMeta(out, meta)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.Search, "search", "s", "", "free-text search over name, building, number and area")
	cmd.Flags().BoolVar(&opts.Roots, "roots", false, "list root locations with their subtrees")
	cmd.Flags().StringSliceVar(&opts.Order, "order", nil, "order entries as field:ASC|DESC, repeatable")
	cmd.Flags().IntVar(&opts.Limit, "limit", query.DefaultLimit, "page size, 0 for all")
	cmd.Flags().IntVar(&opts.Offset, "offset", query.DefaultOffset, "page index")

	return cmd
}

// parseOrderFlags turns "name:desc" entries into an Order. A bare field is ASC.
func parseOrderFlags(entries []string) (query.Order, error) {
	var order query.Order
	for _, e := range entries {
		field, dir, found := strings.Cut(e, ":")
		field = strings.TrimSpace(field)
		if field == "" {
			return nil, fmt.Errorf("invalid order %q", e)
		}
		direction := query.Asc
		if found {
			d, ok := query.ParseDirection(dir)
			if !ok {
				return nil, fmt.Errorf("invalid order direction %q for %s", dir, field)
			}
			direction = d
		}
		order = append(order, query.OrderField{Field: field, Direction: direction})
	}
	return order, nil
}

func printTree(w io.Writer, root *domain.LocationNode) {
	root.Walk(func(n *domain.LocationNode, depth int) {
		fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", depth), formatLocation(&n.Location))
	})
}

func formatLocation(l *domain.Location) string {
	return fmt.Sprintf("%s [%s/%s/%s] (%s)", l.Name, l.Building, l.Number, l.Area, l.ID)
}

func printMeta(w io.Writer, meta client.ListMetadata) {
	fmt.Fprintf(w, "-- limit=%d offset=%d total=%d\n", meta.Limit, meta.Offset, meta.Total)
}

func writeJSONOut(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
