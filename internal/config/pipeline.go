package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// SourceConfig identifies one upstream retailer system.
type SourceConfig struct {
	Code string `mapstructure:"code"`
	Name string `mapstructure:"name"`
}

// ViewConfig registers one materialized aggregate view.
type ViewConfig struct {
	Name string `mapstructure:"name"`
}

// Pipeline describes the registered sources and aggregate views.
type Pipeline struct {
	Sources []SourceConfig `mapstructure:"sources"`
	Views   []ViewConfig   `mapstructure:"views"`
}

// DefaultPipeline matches the retailer systems and summary views the
// warehouse ships with.
func DefaultPipeline() Pipeline {
	return Pipeline{
		Sources: []SourceConfig{
			{Code: "retailer_1", Name: "Retailer 1"},
			{Code: "retailer_2", Name: "Retailer 2"},
			{Code: "retailer_3", Name: "Retailer 3"},
		},
		Views: []ViewConfig{
			{Name: "mv_daily_sales_summary"},
			{Name: "mv_monthly_sales_by_category"},
			{Name: "mv_top_products_by_revenue"},
			{Name: "mv_weekly_sales_trends"},
			{Name: "mv_quarterly_sales_summary"},
			{Name: "mv_daily_sales_by_product"},
		},
	}
}

// LoadPipeline reads the pipeline YAML file, falling back to the
// built-in defaults when no file is configured.
func LoadPipeline(cfg Config) (Pipeline, error) {
	if cfg.PipelineFile == "" {
		return DefaultPipeline(), nil
	}

	v := viper.New()
	v.SetConfigFile(cfg.PipelineFile)
	if err := v.ReadInConfig(); err != nil {
		return Pipeline{}, fmt.Errorf("read pipeline config: %w", err)
	}

	var pipeline Pipeline
	if err := v.Unmarshal(&pipeline); err != nil {
		return Pipeline{}, fmt.Errorf("decode pipeline config: %w", err)
	}

	if len(pipeline.Sources) == 0 {
		pipeline.Sources = DefaultPipeline().Sources
	}
	if len(pipeline.Views) == 0 {
		pipeline.Views = DefaultPipeline().Views
	}
	return pipeline, nil
}

// ViewNames flattens the registered views for the refresh orchestrator.
func (p Pipeline) ViewNames() []string {
	names := make([]string, 0, len(p.Views))
	for _, view := range p.Views {
		if view.Name == "" {
			continue
		}
		names = append(names, view.Name)
	}
	return names
}
