package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/michelin/ns4kafka-go/pkg/proxy"
)

var connectorsCmd = &cobra.Command{
	Use:   "connectors",
	Short: "Act on running connectors",
}

var connectorRestartCmd = &cobra.Command{
	Use:   "restart NAME",
	Short: "Restart a connector and its tasks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ns := resolvedNamespace()
		if ns == "" {
			return fmt.Errorf("a namespace is required (use --namespace or KAFKACTL_NAMESPACE)")
		}
		if _, err := newClient().postJSON(namespacedPath(ns, "connectors", args[0], "restart"), nil, nil); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Connector/%s restarted\n", args[0])
		return nil
	},
}

var connectorStatusCmd = &cobra.Command{
	Use:   "status NAME",
	Short: "Show the runtime state of a connector",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ns := resolvedNamespace()
		if ns == "" {
			return fmt.Errorf("a namespace is required (use --namespace or KAFKACTL_NAMESPACE)")
		}
		var status proxy.ConnectorStatus
		if err := newClient().getJSON(namespacedPath(ns, "connectors", args[0], "status"), &status); err != nil {
			return err
		}
		if structured() {
			return printOutput(cmd.OutOrStdout(), status)
		}
		rows := [][]string{{"connector", status.Connector.State, status.Connector.WorkerID}}
		for _, task := range status.Tasks {
			rows = append(rows, []string{"task-" + strconv.Itoa(task.ID), task.State, task.WorkerID})
		}
		printTable(cmd.OutOrStdout(), []string{"Unit", "State", "Worker"}, rows)
		return nil
	},
}

func init() {
	connectorsCmd.AddCommand(connectorRestartCmd)
	connectorsCmd.AddCommand(connectorStatusCmd)
}
