package main

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/wbrown/janus-odata/odata"
	"github.com/wbrown/janus-odata/odata/demo"
	"github.com/wbrown/janus-odata/odata/uricompare"
)

var explainArgs []string

var explainCmd = &cobra.Command{
	Use:   "explain <name>",
	Short: "Show the structural digest, slots and compiled text of a named query",
	Long: `Compiles a named query without running it and prints the structural
digest it is cached under, the parameter slots its literals bind to and the
request text with every literal replaced by its slot.`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeQueryNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		q, ok := demo.Lookup(args[0])
		if !ok {
			return unknownQuery(args[0])
		}
		overrides, err := parseArgs(q, explainArgs)
		if err != nil {
			return err
		}

		s := demo.NewSchema()
		db, err := openDatabase(s)
		if err != nil {
			return err
		}
		defer db.Close()

		req := q.Request(s, overrides)
		plan, bindings, _, err := db.Prepare(req)
		if err != nil {
			return err
		}

		fmt.Printf("Query:   %s\n", q.Name)
		fmt.Printf("Request: %s\n", req.String())
		fmt.Printf("Digest:  %016x\n", plan.Digest)
		fmt.Printf("Plan:    %s\n", plan.ID)
		fmt.Printf("Text:    %s\n\n", plan.Text)

		if len(plan.Slots) == 0 {
			fmt.Println("No parameter slots")
			return nil
		}
		renderSlots(bindings)
		return nil
	},
}

func init() {
	explainCmd.Flags().StringArrayVar(&explainArgs, "arg", nil, "Override a literal as name=value (repeatable)")
}

func renderSlots(bindings []uricompare.Binding) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header([]string{"Slot", "Kind", "Type", "Value"})
	for _, b := range bindings {
		table.Append([]string{
			"@" + b.Slot.Name,
			b.Slot.Key.Kind.String(),
			b.Slot.Type.String(),
			odata.FormatLiteral(b.Value),
		})
	}
	table.Render()
	fmt.Printf("%d slots\n", len(bindings))
}
