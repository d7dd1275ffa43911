package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// render writes read results as text, json or yaml
func render(w io.Writer, format string, all []fileResults) error {
	switch strings.ToLower(format) {
	case "", "text":
		return renderText(w, all)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(all)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(all); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown output format %q", format)
}

func renderText(w io.Writer, all []fileResults) error {
	for _, fr := range all {
		if len(fr.Results) == 0 {
			if _, err := fmt.Fprintf(w, "%s: no barcode found\n", fr.File); err != nil {
				return err
			}
			continue
		}
		for _, r := range fr.Results {
			if _, err := fmt.Fprintf(w, "%s: %s\t%s\n", fr.File, r.Format, r.Text); err != nil {
				return err
			}
		}
	}
	return nil
}
