package model

import (
	"github.com/google/uuid"
)

// Evidence is a piece of digital evidence a task runs against. The
// analysis tasks only read it.
type Evidence struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	LocalPath string `json:"local_path"`
	Profile   string `json:"profile"` // target system descriptor, e.g. Win7SP1x64
}

// NewEvidence returns an evidence with a random ID, named after
// its local path.
func NewEvidence(localPath, profile string) Evidence {
	return Evidence{
		ID:        uuid.NewString(),
		Name:      localPath,
		LocalPath: localPath,
		Profile:   profile,
	}
}

// Report is the evidence produced by a volatility task: the report file
// written by the tool and, once finalized, its text.
type Report struct {
	SourcePath string `json:"source_path"`
	TextData   string `json:"text_data,omitempty"`
	Size       int64  `json:"size"`             // size of the file on disk
	SHA256     string `json:"sha256,omitempty"` // of the bytes read into TextData
	Truncated  bool   `json:"truncated,omitempty"`

	// provenance
	TaskID   string `json:"task_id"`
	TaskName string `json:"task_name"`
}
