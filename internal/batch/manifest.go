package batch

import (
	"encoding/json"
	"fmt"
	"os"

	"dropview/internal/loaderr"
)

// ManifestEntry represents one drop in the output manifest.
type ManifestEntry struct {
	Name       string   `json:"name"`
	Primary    string   `json:"primary,omitempty"`
	Image      string   `json:"image,omitempty"`
	Meshes     int      `json:"meshes"`
	Triangles  int      `json:"triangles"`
	Animations int      `json:"animations"`
	Warnings   []string `json:"warnings,omitempty"`
	Error      string   `json:"error,omitempty"`
	ErrorKind  string   `json:"error_kind,omitempty"`
}

// WriteManifest writes the results as an indented JSON array.
func WriteManifest(path string, results []Result) error {
	entries := make([]ManifestEntry, len(results))
	for i, r := range results {
		entries[i] = ManifestEntry{
			Name:       r.Name,
			Primary:    r.Primary,
			Image:      r.Image,
			Meshes:     r.Meshes,
			Triangles:  r.Triangles,
			Animations: r.Animations,
			Warnings:   r.Warnings,
			Error:      r.Error,
		}
		if !r.Success && r.Kind != loaderr.KindNone {
			entries[i].ErrorKind = r.Kind.String()
		}
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("batch: manifest: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
