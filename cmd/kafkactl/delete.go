package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

var deleteDryRun bool

var deleteCmd = &cobra.Command{
	Use:   "delete TYPE NAME",
	Short: "Delete a resource",
	Args:  cobra.ExactArgs(2),
	RunE:  runDelete,
}

func init() {
	deleteCmd.Flags().BoolVar(&deleteDryRun, "dry-run", false, "Report without deleting")
}

func runDelete(cmd *cobra.Command, args []string) error {
	kind, err := resolveKind(args[0])
	if err != nil {
		return err
	}
	path, err := resourcePath(kind, resolvedNamespace())
	if err != nil {
		return err
	}
	if _, err := newClient().deletePath(withDryRun(path+"/"+url.PathEscape(args[1]), deleteDryRun)); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%s %q not found", kind, args[1])
		}
		return err
	}
	suffix := ""
	if deleteDryRun {
		suffix = " (dry run)"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s/%s deleted%s\n", kind, args[1], suffix)
	return nil
}
