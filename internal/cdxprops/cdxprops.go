package cdxprops

import (
	cdx "github.com/CycloneDX/cyclonedx-go"
)

// Exported so tests and other packages can reference the same strings.
const (
	RecallEvidenceProfile   = "recall:evidence:profile"
	RecallEvidencePath      = "recall:evidence:path"
	RecallReportTaskID      = "recall:report:task_id"
	RecallReportTaskName    = "recall:report:task_name"
	RecallReportModule      = "recall:report:module"
	RecallReportSuccessful  = "recall:report:successful"
	RecallReportStatus      = "recall:report:status"
	RecallReportTruncated   = "recall:report:truncated"
	RecallReportSize        = "recall:report:size"
	RecallReportDurationSec = "recall:report:duration_seconds"
)

// Set (or upsert) a CycloneDX component property.
func SetComponentProp(c *cdx.Component, name, value string) {
	if value == "" {
		return
	}
	if c.Properties == nil {
		c.Properties = &[]cdx.Property{{Name: name, Value: value}}
		return
	}
	props := *c.Properties
	for i := range props {
		if props[i].Name == name {
			props[i].Value = value
			return
		}
	}
	props = append(props, cdx.Property{Name: name, Value: value})
	*c.Properties = props
}

// Add (append) an evidence.occurrence location if non-empty.
func AddEvidenceLocation(c *cdx.Component, loc string) {
	if loc == "" {
		return
	}
	occ := cdx.EvidenceOccurrence{Location: loc}
	if c.Evidence == nil {
		c.Evidence = &cdx.Evidence{Occurrences: &[]cdx.EvidenceOccurrence{occ}}
		return
	}
	if c.Evidence.Occurrences == nil {
		c.Evidence.Occurrences = &[]cdx.EvidenceOccurrence{occ}
		return
	}
	occs := append(*c.Evidence.Occurrences, occ)
	c.Evidence.Occurrences = &occs
}
