package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadPipelineDefaults(t *testing.T) {
	pipeline, err := LoadPipeline(Config{})
	assert.NoError(t, err)
	assert.Len(t, pipeline.Sources, 3)
	assert.Len(t, pipeline.Views, 6)
	assert.Equal(t, "retailer_1", pipeline.Sources[0].Code)
}

func TestLoadPipelineFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	payload := `sources:
  - code: retailer_1
    name: Retailer One
  - code: retailer_9
    name: Acquired Chain
views:
  - name: mv_daily_sales_summary
`
	assert.NoError(t, os.WriteFile(path, []byte(payload), 0o644))

	pipeline, err := LoadPipeline(Config{PipelineFile: path})
	assert.NoError(t, err)
	assert.Len(t, pipeline.Sources, 2)
	assert.Equal(t, "retailer_9", pipeline.Sources[1].Code)
	assert.Equal(t, "Acquired Chain", pipeline.Sources[1].Name)
	assert.Equal(t, []string{"mv_daily_sales_summary"}, pipeline.ViewNames())
}

func TestLoadPipelineMissingFile(t *testing.T) {
	_, err := LoadPipeline(Config{PipelineFile: filepath.Join(t.TempDir(), "nope.yaml")})
	assert.Error(t, err)
}

func TestViewNamesSkipsBlank(t *testing.T) {
	pipeline := Pipeline{Views: []ViewConfig{{Name: "mv_a"}, {Name: ""}, {Name: "mv_b"}}}
	assert.Equal(t, []string{"mv_a", "mv_b"}, pipeline.ViewNames())
}
