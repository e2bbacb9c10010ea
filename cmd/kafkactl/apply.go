package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/michelin/ns4kafka-go/pkg/resource"
)

var (
	applyFile   string
	applyDryRun bool
)

var applyCmd = &cobra.Command{
	Use:   "apply -f FILE",
	Short: "Create or update resources from YAML",
	Long: `Apply every resource described in FILE (multi-document YAML, a directory
of YAML files, or "-" for stdin). Namespaces are applied first.`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringVarP(&applyFile, "file", "f", "", "YAML file, directory or - for stdin")
	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "Validate and report without persisting")
	_ = applyCmd.MarkFlagRequired("file")
}

func runApply(cmd *cobra.Command, _ []string) error {
	resources, err := readManifests(applyFile, cmd.InOrStdin())
	if err != nil {
		return err
	}
	client := newClient()
	failed := 0
	for _, r := range orderForApply(resources) {
		result, err := applyOne(client, r)
		if err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "%s/%s: %v\n", r.Kind, r.Metadata.Name, err)
			continue
		}
		suffix := ""
		if applyDryRun {
			suffix = " (dry run)"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s/%s %s%s\n", r.Kind, r.Metadata.Name, result, suffix)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d resources failed", failed, len(resources))
	}
	return nil
}

func applyOne(client *ns4kafkaClient, r *resource.Resource) (string, error) {
	if r.APIVersion == "" {
		r.APIVersion = "v1"
	}
	ns := r.Metadata.Namespace
	if ns == "" {
		ns = resolvedNamespace()
	}
	if r.Kind != resource.KindNamespace {
		r.Metadata.Namespace = ns
	}
	path, err := resourcePath(r.Kind, ns)
	if err != nil {
		return "", err
	}
	return client.postJSON(withDryRun(path, applyDryRun), r, nil)
}

// orderForApply puts Namespaces first, then everything else in file order.
func orderForApply(rs []*resource.Resource) []*resource.Resource {
	out := make([]*resource.Resource, 0, len(rs))
	for _, r := range rs {
		if r.Kind == resource.KindNamespace {
			out = append(out, r)
		}
	}
	for _, r := range rs {
		if r.Kind != resource.KindNamespace {
			out = append(out, r)
		}
	}
	return out
}
