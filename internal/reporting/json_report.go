package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"mentorctl/internal/model"
)

// WriteJSONReport writes suite to dir as <name>-<id>.json and returns the
// file path.
func WriteJSONReport(dir string, suite model.TestSuite) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}
	data, err := json.MarshalIndent(suite, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-%s.json", suite.Name, suite.ID))
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}
