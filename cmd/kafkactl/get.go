package main

import (
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/michelin/ns4kafka-go/pkg/resource"
)

var getCmd = &cobra.Command{
	Use:   "get TYPE [NAME]",
	Short: "List resources of a type, or show one",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runGet,
}

func runGet(cmd *cobra.Command, args []string) error {
	kind, err := resolveKind(args[0])
	if err != nil {
		return err
	}
	path, err := resourcePath(kind, resolvedNamespace())
	if err != nil {
		return err
	}
	client := newClient()
	out := cmd.OutOrStdout()

	if len(args) == 2 {
		var r resource.Resource
		if err := client.getJSON(path+"/"+url.PathEscape(args[1]), &r); err != nil {
			if isNotFound(err) {
				return fmt.Errorf("%s %q not found", kind, args[1])
			}
			return err
		}
		if structured() {
			return printOutput(out, r)
		}
		printResources(out, []*resource.Resource{&r}, time.Now())
		return nil
	}

	var rs []*resource.Resource
	if err := client.getJSON(path, &rs); err != nil {
		return err
	}
	if structured() {
		return printOutput(out, rs)
	}
	printResources(out, rs, time.Now())
	return nil
}

func printResources(w io.Writer, rs []*resource.Resource, now time.Time) {
	rows := make([][]string, 0, len(rs))
	for _, r := range rs {
		age := "-"
		if ts := r.Metadata.CreationTimestamp; ts != nil {
			age = humanize.RelTime(*ts, now, "ago", "from now")
		}
		rows = append(rows, []string{string(r.Kind), r.Metadata.Name, r.Metadata.Namespace, age})
	}
	printTable(w, []string{"Kind", "Name", "Namespace", "Age"}, rows)
}
