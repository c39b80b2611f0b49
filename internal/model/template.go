package model

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// defaultStepLabels is the built-in filling workflow checklist.
var defaultStepLabels = [StepCount]string{
	"Document review",
	"Material preparation",
	"Line setup",
	"Filling",
	"Visual inspection",
	"Labeling",
	"QC sampling",
	"Batch record review",
}

// DefaultTemplate returns the built-in 8-step checklist template.
func DefaultTemplate() []ProgressStep {
	steps := make([]ProgressStep, StepCount)
	for i, label := range defaultStepLabels {
		steps[i] = ProgressStep{Position: i + 1, Label: label}
	}
	return steps
}

type templateFile struct {
	Steps []string `yaml:"steps"`
}

// LoadTemplate reads a checklist template from a YAML file holding exactly
// 8 step labels. An empty path returns the built-in template.
func LoadTemplate(path string) ([]ProgressStep, error) {
	if path == "" {
		return DefaultTemplate(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}

	var tf templateFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	if len(tf.Steps) != StepCount {
		return nil, fmt.Errorf("template must define %d steps, has %d", StepCount, len(tf.Steps))
	}

	steps := make([]ProgressStep, StepCount)
	for i, label := range tf.Steps {
		steps[i] = ProgressStep{Position: i + 1, Label: label}
	}
	return steps, nil
}
