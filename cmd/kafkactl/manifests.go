package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/michelin/ns4kafka-go/pkg/resource"
)

// readManifests loads every YAML document of path. A directory is read
// non-recursively (*.yml, *.yaml) in name order; "-" reads stdin.
func readManifests(path string, stdin io.Reader) ([]*resource.Resource, error) {
	if path == "-" {
		return decodeManifests(stdin, "stdin")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	files := []string{path}
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, err
		}
		files = files[:0]
		for _, e := range entries {
			ext := filepath.Ext(e.Name())
			if !e.IsDir() && (ext == ".yml" || ext == ".yaml") {
				files = append(files, filepath.Join(path, e.Name()))
			}
		}
		sort.Strings(files)
	}

	var out []*resource.Resource
	for _, f := range files {
		fh, err := os.Open(f)
		if err != nil {
			return nil, err
		}
		rs, err := decodeManifests(fh, f)
		fh.Close()
		if err != nil {
			return nil, err
		}
		out = append(out, rs...)
	}
	return out, nil
}

func decodeManifests(r io.Reader, source string) ([]*resource.Resource, error) {
	dec := yaml.NewDecoder(r)
	var out []*resource.Resource
	for i := 1; ; i++ {
		var doc map[string]any
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%s: document %d: %w", source, i, err)
		}
		if len(doc) == 0 {
			continue
		}
		// Round-trip through JSON so the envelope's json tags apply.
		data, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("%s: document %d: %w", source, i, err)
		}
		var res resource.Resource
		if err := json.Unmarshal(data, &res); err != nil {
			return nil, fmt.Errorf("%s: document %d: %w", source, i, err)
		}
		if !res.Kind.Valid() {
			return nil, fmt.Errorf("%s: document %d: unknown kind %q", source, i, res.Kind)
		}
		if res.Metadata.Name == "" {
			return nil, fmt.Errorf("%s: document %d: metadata.name is required", source, i)
		}
		out = append(out, &res)
	}
}

// resolveKind accepts a path type ("topics"), a kind ("Topic") or its
// singular lowercase form ("topic").
func resolveKind(arg string) (resource.Kind, error) {
	if k, ok := resource.KindForType(arg); ok {
		return k, nil
	}
	lower := strings.ToLower(arg)
	if lower == "namespace" || lower == "namespaces" || lower == "ns" {
		return resource.KindNamespace, nil
	}
	for _, k := range resource.Kinds() {
		if strings.ToLower(string(k)) == lower {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown resource type %q", arg)
}

// resourcePath is the collection path of kind in ns.
func resourcePath(kind resource.Kind, ns string) (string, error) {
	if kind == resource.KindNamespace {
		return "/api/namespaces", nil
	}
	if ns == "" {
		return "", errors.New("a namespace is required (use --namespace or KAFKACTL_NAMESPACE)")
	}
	return namespacedPath(ns, kind.PathType()), nil
}
