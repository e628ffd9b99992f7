package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleRecordValidate(t *testing.T) {
	valid := ScheduleRecord{
		Type:      ScheduleTypeProject,
		ProjectID: "project_1",
		Binding:   &TriggerBinding{NodeInstanceID: "node_1"},
	}
	require.NoError(t, valid.Validate())

	missingProject := valid
	missingProject.ProjectID = ""
	assert.Error(t, missingProject.Validate())

	missingBinding := valid
	missingBinding.Binding = nil
	assert.Error(t, missingBinding.Validate())

	emptyBinding := valid
	emptyBinding.Binding = &TriggerBinding{}
	assert.Error(t, emptyBinding.Validate())

	ingestion := ScheduleRecord{Type: ScheduleTypeIngestion}
	require.NoError(t, ingestion.Validate())

	ingestionWithProject := ScheduleRecord{Type: ScheduleTypeIngestion, ProjectID: "project_1"}
	assert.Error(t, ingestionWithProject.Validate())
}
