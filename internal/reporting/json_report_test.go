package reporting

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"mentorctl/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSONReport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	suite := testSuite("r1")
	suite.Status = model.SuiteCompleted

	path, err := WriteJSONReport(dir, suite)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "smoke-r1.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got model.TestSuite
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, suite.ID, got.ID)
	assert.Equal(t, model.SuiteCompleted, got.Status)
}
