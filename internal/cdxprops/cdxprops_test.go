package cdxprops

import (
	"testing"

	cdx "github.com/CycloneDX/cyclonedx-go"
	"github.com/stretchr/testify/require"
)

func TestSetComponentProp_InitializesWhenNil(t *testing.T) {
	var c cdx.Component
	SetComponentProp(&c, RecallEvidenceProfile, "Win7SP1x64")

	require.NotNil(t, c.Properties)
	props := *c.Properties
	require.Len(t, props, 1)
	require.Equal(t, RecallEvidenceProfile, props[0].Name)
	require.Equal(t, "Win7SP1x64", props[0].Value)
}

func TestSetComponentProp_UpsertsExisting(t *testing.T) {
	c := cdx.Component{
		Properties: &[]cdx.Property{
			{Name: RecallReportSuccessful, Value: "false"},
			{Name: "other", Value: "x"},
		},
	}

	SetComponentProp(&c, RecallReportSuccessful, "true")

	props := *c.Properties
	require.Len(t, props, 2)
	require.Equal(t, cdx.Property{Name: RecallReportSuccessful, Value: "true"}, props[0])
}

func TestSetComponentProp_IgnoresEmpty(t *testing.T) {
	var c cdx.Component
	SetComponentProp(&c, RecallReportStatus, "")
	require.Nil(t, c.Properties)
}

func TestAddEvidenceLocation(t *testing.T) {
	var c cdx.Component
	AddEvidenceLocation(&c, "")
	require.Nil(t, c.Evidence)

	AddEvidenceLocation(&c, "/evidence/memory.raw")
	AddEvidenceLocation(&c, "/out/42.txt")
	require.NotNil(t, c.Evidence)
	require.Equal(t, []cdx.EvidenceOccurrence{
		{Location: "/evidence/memory.raw"},
		{Location: "/out/42.txt"},
	}, *c.Evidence.Occurrences)
}
