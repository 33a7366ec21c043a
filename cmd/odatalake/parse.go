package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/kk-code-lab/odatalake/internal/odata"
)

func newParseCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <method> <uri>",
		Short: "Print the request descriptor and SQL for a URI",
		Example: `  odatalake parse GET '/acc1/people?$select=name&$filter=id eq 2'
  odatalake parse POST /acc1/s/create_table`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			desc, err := newParser(cfg).Parse(strings.ToUpper(args[0]), args[1])
			if err != nil {
				if odata.IsClientError(err) {
					return &exitCodeError{code: 1, msg: err.Error()}
				}
				return err
			}
			return writeJSON(cmd.OutOrStdout(), desc)
		},
	}
}
