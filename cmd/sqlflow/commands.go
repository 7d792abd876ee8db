package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	pluralizer "github.com/gertd/go-pluralize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Konsultn-Engineering/sqlflow"
	"github.com/Konsultn-Engineering/sqlflow/database"
	"github.com/Konsultn-Engineering/sqlflow/engine"
)

var plural = pluralizer.NewClient()

// statementFlags holds the parameters given to one statement.
type statementFlags struct {
	params []string
	args   []string
}

func (f *statementFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&f.params, "param", "p", nil, "named parameter name[:type]=value (repeatable)")
	cmd.Flags().StringArrayVarP(&f.args, "arg", "a", nil, "positional parameter [type:]value (repeatable)")
}

// apply binds positional arguments first so they fill slots 0, 1, 2 and so
// on, then the named parameters.
func (f *statementFlags) apply(b *engine.Builder) error {
	for _, s := range f.args {
		v, err := parseArg(s)
		if err != nil {
			return err
		}
		b.Parameter(v)
	}
	for _, s := range f.params {
		arg, err := parseParam(s)
		if err != nil {
			return err
		}
		b.NamedParameters(arg)
	}
	return nil
}

// statementText returns the SQL argument, reading stdin when it is "-".
func statementText(cmd *cobra.Command, arg string) (string, error) {
	if arg != "-" {
		return arg, nil
	}
	b, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read statement: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// runStatement opens a session, hands the statement to run and closes the
// session whatever happens.
func runStatement(cmd *cobra.Command, v *viper.Viper, arg string, run func(*session, string) error) (err error) {
	query, err := statementText(cmd, arg)
	if err != nil {
		return err
	}
	s, err := openSession(cmd, v)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return run(s, query)
}

func newSelectCommand(v *viper.Viper) *cobra.Command {
	var f statementFlags
	cmd := &cobra.Command{
		Use:   "select SQL",
		Short: "Run a query and print its rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatement(cmd, v, args[0], func(s *session, query string) error {
				op := s.src.Select(query)
				if err := f.apply(op.Builder()); err != nil {
					return err
				}
				ctx, cancel := s.context(cmd.Context())
				defer cancel()

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				n := 0
				for r, err := range sqlflow.Many(op, scanRecord).Iter(ctx) {
					if err != nil {
						return err
					}
					if n == 0 {
						fmt.Fprintln(w, strings.Join(r.cols, "\t"))
					}
					fmt.Fprintln(w, r.String())
					n++
				}
				if err := w.Flush(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.ErrOrStderr(), plural.Pluralize("row", n, true))
				return nil
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newInsertCommand(v *viper.Viper) *cobra.Command {
	var f statementFlags
	cmd := &cobra.Command{
		Use:   "insert SQL",
		Short: "Run an insert and print the generated keys",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatement(cmd, v, args[0], func(s *session, query string) error {
				op := s.src.Insert(query)
				if err := f.apply(op.Builder()); err != nil {
					return err
				}
				ctx, cancel := s.context(cmd.Context())
				defer cancel()

				keys, err := op.Keys().Collect(ctx)
				if err != nil {
					return err
				}
				for _, k := range keys {
					fmt.Fprintln(cmd.OutOrStdout(), k)
				}
				fmt.Fprintln(cmd.ErrOrStderr(), plural.Pluralize("key", len(keys), true))
				return nil
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newExecCommand(v *viper.Viper) *cobra.Command {
	var f statementFlags
	cmd := &cobra.Command{
		Use:   "exec SQL",
		Short: "Run an update, delete or DDL statement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatement(cmd, v, args[0], func(s *session, query string) error {
				op := s.src.Execute(query)
				if err := f.apply(op.Builder()); err != nil {
					return err
				}
				ctx, cancel := s.context(cmd.Context())
				defer cancel()

				n, err := op.Run().Get(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.ErrOrStderr(), plural.Pluralize("row", int(n), true)+" affected")
				return nil
			})
		},
	}
	f.register(cmd)
	return cmd
}

// record is one row of a query with its column names.
type record struct {
	cols []string
	vals []any
}

func scanRecord(r database.Row) (record, error) {
	cols, vals, err := database.ScanValues(r)
	return record{cols: cols, vals: vals}, err
}

func (r record) String() string {
	fields := make([]string, len(r.vals))
	for i, v := range r.vals {
		if v == nil {
			fields[i] = "NULL"
			continue
		}
		fields[i] = fmt.Sprint(v)
	}
	return strings.Join(fields, "\t")
}

