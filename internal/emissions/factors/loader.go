package factors

import (
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

type seedFile struct {
	Factors []seedRow `yaml:"factors"`
}

// Factor values are quoted in the seed file so they never pass through float64.
type seedRow struct {
	Category string `yaml:"category"`
	Unit     string `yaml:"unit"`
	Factor   string `yaml:"factor"`
	Source   string `yaml:"source"`
	Year     int    `yaml:"year"`
	Region   string `yaml:"region"`
	Notes    string `yaml:"notes"`
}

// LoadYAML reads factor rows from a seed document.
func LoadYAML(r io.Reader) ([]Factor, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read factor seed: %w", err)
	}

	var file seedFile
	if err := yaml.UnmarshalStrict(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse factor seed: %w", err)
	}

	rows := make([]Factor, 0, len(file.Factors))
	for i, row := range file.Factors {
		value, err := decimal.NewFromString(row.Factor)
		if err != nil {
			return nil, fmt.Errorf("factor seed row %d (%s/%s): invalid factor %q: %w", i, row.Category, row.Unit, row.Factor, err)
		}
		rows = append(rows, Factor{
			Category: row.Category,
			Unit:     row.Unit,
			Factor:   value,
			Source:   row.Source,
			Year:     row.Year,
			Region:   row.Region,
			Notes:    row.Notes,
		})
	}
	return rows, nil
}

// LoadYAMLFile reads a seed file from disk.
func LoadYAMLFile(path string) ([]Factor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open factor seed: %w", err)
	}
	defer f.Close()
	return LoadYAML(f)
}
