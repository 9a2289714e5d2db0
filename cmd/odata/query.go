package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/wbrown/janus-odata/odata/demo"
	"github.com/wbrown/janus-odata/odata/executor"
)

var queryArgs []string

var queryCmd = &cobra.Command{
	Use:   "query <name>",
	Short: "Run one named query",
	Long: `Runs one named query of the demo workload. Literal values default to the
query's own defaults and can be overridden with --arg.

Examples:
  odata query big-orders --arg min=250 --arg top=3
  odata query customers-in-city --arg city=Osaka
  odata query customer-by-id --arg id=null`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeQueryNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		q, ok := demo.Lookup(args[0])
		if !ok {
			return unknownQuery(args[0])
		}
		overrides, err := parseArgs(q, queryArgs)
		if err != nil {
			return err
		}

		ctx, cancel := commandContext(cmd)
		defer cancel()

		s := demo.NewSchema()
		db, err := openDatabase(s)
		if err != nil {
			return err
		}
		defer db.Close()

		req := q.Request(s, overrides)
		fmt.Println(color.New(color.Bold).Sprint(req.String()))
		fmt.Println()

		res, err := db.Query(ctx, req)
		if err != nil {
			return err
		}
		fmt.Print(executor.NewTableFormatter().FormatResult(res))
		return nil
	},
}

func init() {
	queryCmd.Flags().StringArrayVar(&queryArgs, "arg", nil, "Override a literal as name=value (repeatable)")
}

// parseArgs converts name=value pairs to the argument types of q
func parseArgs(q demo.NamedQuery, pairs []string) (demo.Args, error) {
	out := make(demo.Args, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --arg %q, expected name=value", pair)
		}
		v, err := q.ParseArg(name, raw)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

func unknownQuery(name string) error {
	names := make([]string, 0)
	for _, q := range demo.Queries() {
		names = append(names, q.Name)
	}
	return fmt.Errorf("unknown query %q (available: %s)", name, strings.Join(names, ", "))
}

func completeQueryNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var names []string
	for _, q := range demo.Queries() {
		if strings.HasPrefix(q.Name, toComplete) {
			names = append(names, q.Name+"\t"+q.Description)
		}
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}
