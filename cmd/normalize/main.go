// Package main is a CLI for running provider normalizers locally: it reads a
// raw provider export and writes the canonical dataset as JSON, without
// touching the database.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/drmixer/elevated-importer/internal/providers"
)

func main() {
	var (
		provider string
		input    string
		output   string
		pretty   bool
		limit    int
	)
	flag.StringVar(&provider, "provider", "", "Provider id (one of: "+strings.Join(providers.RawIDs(), ", ")+")")
	flag.StringVar(&input, "input", "", "Path to the raw provider export file")
	flag.StringVar(&output, "output", "", "Write the dataset to this file instead of stdout")
	flag.BoolVar(&pretty, "pretty", false, "Indent the JSON output")
	flag.IntVar(&limit, "limit", 0, "Normalize at most this many top-level groups (0 = all)")
	flag.Parse()

	if err := run(provider, input, output, pretty, limit); err != nil {
		fmt.Fprintf(os.Stderr, "normalize: %v\n", err)
		os.Exit(1)
	}
}

func run(provider, input, output string, pretty bool, limit int) error {
	if provider == "" {
		return fmt.Errorf("-provider is required")
	}
	if input == "" {
		return fmt.Errorf("-input is required")
	}
	if limit < 0 {
		return fmt.Errorf("-limit must not be negative")
	}

	norm, err := providers.ForProvider(provider)
	if err != nil {
		return err
	}

	result, err := norm.Load(input, providers.LoadOptions{Limit: limit})
	if err != nil {
		return err
	}

	var encoded []byte
	if pretty {
		encoded, err = json.MarshalIndent(result.Dataset, "", "  ")
	} else {
		encoded, err = json.Marshal(result.Dataset)
	}
	if err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}
	encoded = append(encoded, '\n')

	if output == "" {
		_, err = os.Stdout.Write(encoded)
		return err
	}
	if err := os.WriteFile(output, encoded, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
