package models_test

import (
	"testing"
	"time"

	"modelmon/internal/models"
)

func TestMetricSampleValidate(t *testing.T) {
	valid := func() *models.MetricSample {
		return &models.MetricSample{
			Name:      models.MetricAccuracy,
			Value:     0.85,
			Timestamp: time.Now(),
		}
	}

	tests := []struct {
		name    string
		modify  func(*models.MetricSample)
		wantErr error
	}{
		{"valid sample", func(m *models.MetricSample) {}, nil},
		{"empty name", func(m *models.MetricSample) { m.Name = "" }, models.ErrEmptyMetricName},
		{"zero timestamp", func(m *models.MetricSample) { m.Timestamp = time.Time{} }, models.ErrZeroTimestamp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := valid()
			tt.modify(m)
			if err := m.Validate(); err != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSeverity(t *testing.T) {
	if !models.SeverityWarning.IsValid() || !models.SeverityCritical.IsValid() {
		t.Error("warning and critical are valid severities")
	}
	if models.Severity("info").IsValid() {
		t.Error("unknown severities are not rendered")
	}

	if models.SeverityCritical.Rank() <= models.SeverityWarning.Rank() {
		t.Error("critical must rank above warning")
	}
	if models.SeverityWarning.Rank() <= models.Severity("bogus").Rank() {
		t.Error("warning must rank above unknown severities")
	}
}

func TestGaugeMetricNamesStable(t *testing.T) {
	want := []string{
		"model_accuracy",
		"model_precision",
		"model_recall",
		"model_f1_score",
		"total_predictions",
		"total_errors",
		"cpu_usage_percent",
		"memory_usage_mb",
	}
	if len(models.GaugeMetricNames) != len(want) {
		t.Fatalf("tracked metric count = %d, want %d", len(models.GaugeMetricNames), len(want))
	}
	for i, name := range want {
		if models.GaugeMetricNames[i] != name {
			t.Errorf("GaugeMetricNames[%d] = %s, want %s", i, models.GaugeMetricNames[i], name)
		}
	}
}
