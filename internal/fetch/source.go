// Package fetch downloads translation sources into the local content store.
package fetch

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/FocuswithJustin/ChristusBible/core/corpus"
	"github.com/FocuswithJustin/ChristusBible/core/errors"
	"github.com/FocuswithJustin/ChristusBible/internal/ingest"
)

// Source describes one translation download.
type Source struct {
	ID       string `json:"id"`
	Language string `json:"lang"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	Format   string `json:"format,omitempty"`
	BLAKE3   string `json:"blake3,omitempty"`
}

// Meta returns the corpus metadata of the source.
func (s Source) Meta() corpus.Meta {
	return corpus.Meta{ID: s.ID, Language: s.Language, Name: s.Name}
}

// Manifest lists the sources of a build.
type Manifest struct {
	Sources []Source `json:"sources"`
}

// LoadManifest reads a JSON manifest.
func LoadManifest(r io.Reader) (*Manifest, error) {
	var m Manifest
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, &errors.ParseError{Format: "json", Message: "sources manifest", Err: err}
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadManifestFile reads a JSON manifest from path.
func LoadManifestFile(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	defer f.Close()

	m, err := LoadManifest(f)
	var pe *errors.ParseError
	if errors.As(err, &pe) {
		pe.Path = path
	}
	return m, err
}

// Validate checks ids are present and unique and formats are known.
func (m *Manifest) Validate() error {
	var errs []error
	seen := make(map[string]bool)
	for i, s := range m.Sources {
		switch {
		case s.ID == "":
			errs = append(errs, errors.NewValidation("id", fmt.Sprintf("source %d has no id", i)))
		case seen[s.ID]:
			errs = append(errs, errors.NewValidation("id", fmt.Sprintf("duplicate source id %q", s.ID)))
		}
		seen[s.ID] = true
		if s.URL == "" {
			errs = append(errs, errors.NewValidation("url", fmt.Sprintf("source %q has no url", s.ID)))
		}
		if _, err := ingest.ParseFormat(s.Format); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Get returns the source with the given id.
func (m *Manifest) Get(id string) (Source, bool) {
	for _, s := range m.Sources {
		if s.ID == id {
			return s, true
		}
	}
	return Source{}, false
}
