package stream

import (
	"time"

	"github.com/temirov/codereview/internal/types"
)

const SchemaVersion = 1

type EventKind string

const (
	EventKindStart   EventKind = "start"
	EventKindFile    EventKind = "file"
	EventKindResult  EventKind = "result"
	EventKindTree    EventKind = "tree"
	EventKindSummary EventKind = "summary"
	EventKindWarning EventKind = "warning"
	EventKindError   EventKind = "error"
	EventKindDone    EventKind = "done"
)

type Event struct {
	Version   int       `json:"version"`
	Kind      EventKind `json:"kind"`
	Command   string    `json:"command,omitempty"`
	Path      string    `json:"path,omitempty"`
	EmittedAt time.Time `json:"emittedAt,omitempty"`

	File    *FileEvent             `json:"file,omitempty"`
	Result  *types.AnalysisResult  `json:"result,omitempty"`
	Tree    []*types.FileTreeNode  `json:"tree,omitempty"`
	Summary *types.AnalysisSummary `json:"summary,omitempty"`
	Message *LogEvent              `json:"message,omitempty"`
	Err     *ErrorEvent            `json:"error,omitempty"`
}

// FileEvent announces the file about to be analyzed.
type FileEvent struct {
	Path  string `json:"path"`
	Index int    `json:"index"`
	Total int    `json:"total"`
}

type LogEvent struct {
	Level   string `json:"level,omitempty"`
	Message string `json:"message"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}
