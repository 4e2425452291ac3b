package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/five82/solarops/internal/app"
	"github.com/five82/solarops/internal/listquery"
	"github.com/five82/solarops/internal/resource"
)

// collection resolves the resource named by the first argument.
func collection(cmd *cobra.Command, args []string) (*app.App, resource.Lister, error) {
	a, err := appFrom(cmd)
	if err != nil {
		return nil, nil, err
	}
	lister, err := a.Catalog.Lookup(args[0])
	if err != nil {
		return nil, nil, err
	}
	return a, lister, nil
}

func newListCmd() *cobra.Command {
	var (
		query   string
		view    string
		filters []string
		sortBy  string
		desc    bool
		page    int
	)

	cmd := &cobra.Command{
		Use:   "list <resource>",
		Short: "List a collection through the query pipeline",
		Long: `List a collection. The whole collection is fetched and then narrowed
locally: free-text query, view, structured filters (all must hold), sort,
and finally pagination.

Filters take the form property:operator[:value]. Operators:
  equals not-equals contains not-contains starts-with ends-with
  greater-than less-than is-after is-before is-blank is-present`,
		Example: `  # Leads mentioning "ali"
  solarops list leads --query ali

  # Won leads above 8 kW, biggest first
  solarops list leads --view won --filter systemSizeKw:greater-than:8 --sort-by systemSizeKw --desc

  # Second page of stock as JSON
  solarops list stock --page 2 -o json`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeResources,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, lister, err := collection(cmd, args)
			if err != nil {
				return err
			}
			if page < 1 {
				return fmt.Errorf("invalid page %d (pages start at 1)", page)
			}
			clauses, err := parseFilters(filters, lister.Schema())
			if err != nil {
				return err
			}

			q := listquery.Query{
				Query:   query,
				View:    view,
				Filters: clauses,
				SortBy:  sortBy,
				Sort:    listquery.Asc,
				Page:    page - 1,
			}
			if desc {
				q.Sort = listquery.Desc
			}

			res, err := lister.Query(cmd.Context(), q)
			if err != nil {
				return err
			}
			return rendererFor(cmd, a).page(lister.Schema(), res, q, lister.PageSize())
		},
	}

	f := cmd.Flags()
	f.StringVarP(&query, "query", "q", "", "free-text search over the collection's search fields")
	f.StringVar(&view, "view", listquery.ViewAll, "only records whose status equals this value")
	f.StringArrayVarP(&filters, "filter", "f", nil, "structured filter property:operator[:value] (repeatable)")
	f.StringVar(&sortBy, "sort-by", "", "field to sort by")
	f.BoolVar(&desc, "desc", false, "sort descending")
	f.IntVar(&page, "page", 1, "page number, starting at 1")
	return cmd
}

// parseFilters turns property:operator[:value] arguments into validated
// clauses. Values of number fields are converted to numbers.
func parseFilters(args []string, schema listquery.Schema) ([]listquery.FilterClause, error) {
	clauses := make([]listquery.FilterClause, 0, len(args))
	for _, arg := range args {
		parts := strings.SplitN(arg, ":", 3)
		if len(parts) < 2 {
			return nil, fmt.Errorf("invalid filter %q (want property:operator[:value])", arg)
		}
		op, err := listquery.ParseOperator(parts[1])
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", arg, err)
		}
		clause := listquery.FilterClause{Property: strings.TrimSpace(parts[0]), Operator: op}
		if len(parts) == 3 {
			clause.Value = parts[2]
		}
		if err := schema.Validate(clause); err != nil {
			return nil, fmt.Errorf("filter %q: %w", arg, err)
		}
		clauses = append(clauses, schema.Coerce(clause))
	}
	return clauses, nil
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "get <resource> <id>",
		Short:             "Show one record",
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completeResources,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, lister, err := collection(cmd, args)
			if err != nil {
				return err
			}
			rec, err := lister.GetRaw(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			return rendererFor(cmd, a).record(rec)
		},
	}
}

func newCreateCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "create <resource>",
		Short: "Create a record from a JSON document",
		Example: `  solarops create leads -f lead.json
  echo '{"name":"Ali Khan","status":"new"}' | solarops create leads`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeResources,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, lister, err := collection(cmd, args)
			if err != nil {
				return err
			}
			doc, err := readDocument(cmd, file)
			if err != nil {
				return err
			}
			rec, err := lister.CreateRaw(cmd.Context(), doc)
			if err != nil {
				return err
			}
			return rendererFor(cmd, a).record(rec)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "-", "JSON document to send (- for stdin)")
	return cmd
}

func newUpdateCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:               "update <resource> <id>",
		Short:             "Update a record from a JSON document",
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completeResources,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, lister, err := collection(cmd, args)
			if err != nil {
				return err
			}
			doc, err := readDocument(cmd, file)
			if err != nil {
				return err
			}
			rec, err := lister.UpdateRaw(cmd.Context(), args[1], doc)
			if err != nil {
				return err
			}
			return rendererFor(cmd, a).record(rec)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "-", "JSON document to send (- for stdin)")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "delete <resource> <id>",
		Short:             "Delete a record",
		Args:              cobra.ExactArgs(2),
		ValidArgsFunction: completeResources,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, lister, err := collection(cmd, args)
			if err != nil {
				return err
			}
			if err := lister.Delete(cmd.Context(), args[1]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s %s\n", lister.Name(), args[1])
			return nil
		},
	}
}

// readDocument reads a JSON object from path, or from stdin for "-".
func readDocument(cmd *cobra.Command, path string) (json.RawMessage, error) {
	var (
		data []byte
		err  error
	)
	if path == "" || path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	if obj == nil {
		return nil, errors.New("parse document: expected a JSON object")
	}
	return json.RawMessage(data), nil
}

func completeResources(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return resource.NewCatalog(nil, listquery.Pipeline{}).Names(), cobra.ShellCompDirectiveNoFileComp
}
