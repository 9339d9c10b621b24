// Command schemagen renders the array-job subsystem's external wire
// attributes (spec.md §6) as an OpenAPI document, for the out-of-scope
// RPC layer to validate submit/modify requests against.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"

	"github.com/hpcflow/jobcore/pkg/schema"
)

func main() {
	outputFile := flag.String("output", "", "Output file path for the OpenAPI schema (if not specified, prints to stdout)")
	flag.Parse()

	doc, err := schema.Generate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating OpenAPI schema: %v\n", err)
		os.Exit(1)
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling schema to YAML: %v\n", err)
		os.Exit(1)
	}

	if *outputFile == "" {
		fmt.Print(string(out))
		return
	}

	if err := os.MkdirAll(filepath.Dir(*outputFile), 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*outputFile, out, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing schema to %s: %v\n", *outputFile, err)
		os.Exit(1)
	}
	fmt.Printf("Generated OpenAPI schema at %s\n", *outputFile)
}
