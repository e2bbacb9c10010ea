package main

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/michelin/ns4kafka-go/pkg/audit"
)

var (
	auditHours   int
	auditMinutes int
)

var auditCmd = &cobra.Command{
	Use:   "audit-logs",
	Short: "Show recent changes (admin only)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		q := url.Values{}
		if auditHours > 0 {
			q.Set("hours", strconv.Itoa(auditHours))
		}
		if auditMinutes > 0 {
			q.Set("minutes", strconv.Itoa(auditMinutes))
		}
		path := "/audit-logs"
		if len(q) > 0 {
			path += "?" + q.Encode()
		}

		var events []audit.Event
		if err := newClient().getJSON(path, &events); err != nil {
			return err
		}
		if structured() {
			return printOutput(cmd.OutOrStdout(), events)
		}
		rows := make([][]string, 0, len(events))
		for _, e := range events {
			rows = append(rows, []string{
				e.Timestamp.Local().Format(time.DateTime),
				e.User,
				string(e.Operation),
				fmt.Sprintf("%s/%s", e.Kind, e.Metadata.Name),
				e.Metadata.Namespace,
			})
		}
		printTable(cmd.OutOrStdout(), []string{"Date", "User", "Operation", "Resource", "Namespace"}, rows)
		return nil
	},
}

func init() {
	auditCmd.Flags().IntVar(&auditHours, "hours", 0, "Look back this many hours")
	auditCmd.Flags().IntVar(&auditMinutes, "minutes", 0, "Look back this many minutes")
}
