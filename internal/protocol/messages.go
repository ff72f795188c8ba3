package protocol

import "time"

// ScriptProgress reports script-generation stages on the bus so UIs can
// show live status while a CLI agent analyzes the repository.
type ScriptProgress struct {
	SessionFolder string    `json:"session_folder,omitempty"`
	Repository    string    `json:"repository"`
	Question      string    `json:"question"`
	Stage         string    `json:"stage"`
	Provider      string    `json:"provider,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// ScriptDone announces a finished script.
type ScriptDone struct {
	SessionFolder string    `json:"session_folder,omitempty"`
	Repository    string    `json:"repository"`
	Question      string    `json:"question"`
	Blocks        int       `json:"blocks"`
	Provider      string    `json:"provider"`
	Timestamp     time.Time `json:"timestamp"`
}

// SynthesisDone announces audio generated for one narration text.
type SynthesisDone struct {
	SessionFolder string    `json:"session_folder,omitempty"`
	Block         int       `json:"block"`
	CacheHit      bool      `json:"cache_hit"`
	Provider      string    `json:"provider"`
	Timestamp     time.Time `json:"timestamp"`
}

// Progress stages carried in ScriptProgress.Stage.
const (
	StageAnalyzing = "analyzing"
	StageParsing   = "parsing"
	StageFailed    = "failed"
)

const (
	SubjectScriptProgress = "docc.script.progress"
	SubjectScriptDone     = "docc.script.done"
	SubjectSynthesisDone  = "docc.synthesis.done"
)
