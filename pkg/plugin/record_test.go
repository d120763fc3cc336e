package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestRecordAdvanceForwardOnly verifies the lifecycle only moves forward.
func TestRecordAdvanceForwardOnly(t *testing.T) {
	rec := &Record{Meta: Metadata{Name: "p"}, State: StateDiscovered}

	rec.advance(StateDependenciesValidated)
	rec.advance(StateInitialized)
	rec.advance(StateCleanedUp)
	assert.Equal(t, StateCleanedUp, rec.State)
}

// TestRecordAdvanceRegressionPanics verifies a backwards transition panics.
func TestRecordAdvanceRegressionPanics(t *testing.T) {
	rec := &Record{Meta: Metadata{Name: "p"}, State: StateInitialized}

	assert.Panics(t, func() { rec.advance(StateDiscovered) })
}

// TestRecordAdvanceFromFailedPanics verifies failed is terminal.
func TestRecordAdvanceFromFailedPanics(t *testing.T) {
	rec := &Record{Meta: Metadata{Name: "p"}, State: StateDiscovered}
	rec.fail("boom")

	assert.Panics(t, func() { rec.advance(StateInitialized) })
}

// TestRecordFailKeepsReason verifies the failure reason is recorded and a
// cleaned-up record cannot fail afterwards.
func TestRecordFailKeepsReason(t *testing.T) {
	rec := &Record{Meta: Metadata{Name: "p"}, State: StateDependenciesValidated}
	rec.fail("missing weights")
	assert.Equal(t, StateFailed, rec.State)
	assert.Equal(t, "missing weights", rec.Reason)

	done := &Record{Meta: Metadata{Name: "q"}, State: StateCleanedUp}
	done.fail("too late")
	assert.Equal(t, StateCleanedUp, done.State)
	assert.Empty(t, done.Reason)
}

// TestMetadataValidate covers the structural metadata rules.
func TestMetadataValidate(t *testing.T) {
	valid := Metadata{Name: "flux_local", Version: "1.0.0", Category: CategoryBackend}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name string
		meta Metadata
	}{
		{"missing name", Metadata{Version: "1.0.0", Category: CategoryBackend}},
		{"uppercase name", Metadata{Name: "Flux", Version: "1.0.0", Category: CategoryBackend}},
		{"whitespace name", Metadata{Name: "flux local", Version: "1.0.0", Category: CategoryBackend}},
		{"hyphen name", Metadata{Name: "flux-local", Version: "1.0.0", Category: CategoryBackend}},
		{"missing version", Metadata{Name: "flux", Category: CategoryBackend}},
		{"missing category", Metadata{Name: "flux", Version: "1.0.0"}},
		{"unknown category", Metadata{Name: "flux", Version: "1.0.0", Category: "filter"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.meta.Validate())
		})
	}
}
