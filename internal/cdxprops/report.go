package cdxprops

import (
	"path/filepath"
	"strconv"

	"github.com/CZERTAINLY/Recall/internal/model"

	cdx "github.com/CycloneDX/cyclonedx-go"
)

// EvidenceRef is the BOMRef of the analysed evidence
func EvidenceRef(ev model.Evidence) string {
	return "recall:evidence/" + ev.ID
}

// ReportRef is the BOMRef of a report produced by a task
func ReportRef(taskID string) string {
	return "recall:report/" + taskID
}

// EvidenceToComponent describes the analysed evidence as a data component
func EvidenceToComponent(ev model.Evidence) cdx.Component {
	compo := cdx.Component{
		BOMRef: EvidenceRef(ev),
		Type:   cdx.ComponentTypeData,
		Name:   ev.Name,
	}
	SetComponentProp(&compo, RecallEvidenceProfile, ev.Profile)
	SetComponentProp(&compo, RecallEvidencePath, ev.LocalPath)
	AddEvidenceLocation(&compo, ev.LocalPath)
	return compo
}

// ResultToComponents returns a file component for every report of a closed
// task result. The text of a report is not included, only its hash.
func ResultToComponents(module string, result *model.Result) []cdx.Component {
	reports := result.Evidence()
	compos := make([]cdx.Component, 0, len(reports))
	for _, report := range reports {
		compo := cdx.Component{
			BOMRef:   ReportRef(report.TaskID),
			Type:     cdx.ComponentTypeFile,
			MIMEType: "text/plain",
			Name:     filepath.Base(report.SourcePath),
		}
		if report.SHA256 != "" {
			compo.Hashes = &[]cdx.Hash{
				{Algorithm: cdx.HashAlgoSHA256, Value: report.SHA256},
			}
		}
		SetComponentProp(&compo, RecallReportTaskID, report.TaskID)
		SetComponentProp(&compo, RecallReportTaskName, report.TaskName)
		SetComponentProp(&compo, RecallReportModule, module)
		SetComponentProp(&compo, RecallReportSuccessful, strconv.FormatBool(result.Successful()))
		SetComponentProp(&compo, RecallReportStatus, result.Status())
		SetComponentProp(&compo, RecallReportTruncated, strconv.FormatBool(report.Truncated))
		SetComponentProp(&compo, RecallReportSize, strconv.FormatInt(report.Size, 10))
		SetComponentProp(&compo, RecallReportDurationSec, strconv.FormatFloat(result.Duration().Seconds(), 'f', 3, 64))
		AddEvidenceLocation(&compo, report.SourcePath)
		compos = append(compos, compo)
	}
	return compos
}

// ReportDependencies links every report component to the evidence it was
// produced from.
func ReportDependencies(ev model.Evidence, compos []cdx.Component) []cdx.Dependency {
	deps := make([]cdx.Dependency, 0, len(compos))
	for _, compo := range compos {
		deps = append(deps, cdx.Dependency{
			Ref:          compo.BOMRef,
			Dependencies: &[]string{EvidenceRef(ev)},
		})
	}
	return deps
}
