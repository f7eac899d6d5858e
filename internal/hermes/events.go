package hermes

import "time"

const (
	SubjectRecordWritten  = "doppel.dataset.record"
	SubjectBatchCompleted = "doppel.batch.completed"
	SubjectReplySent      = "doppel.reply.sent"
)

// RecordWritten is emitted for each training record a batch run produced.
type RecordWritten struct {
	RunID  string `json:"run_id"`
	Index  int    `json:"index"`
	Source string `json:"source"`
	Turns  int    `json:"turns"`
}

// BatchCompleted summarises a finished batch run.
type BatchCompleted struct {
	RunID      string    `json:"run_id"`
	Output     string    `json:"output"`
	Files      int       `json:"files"`
	Sessions   int       `json:"sessions"`
	Records    int       `json:"records"`
	Failures   int       `json:"failures"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// ReplySent is emitted after the reply service answers a message.
type ReplySent struct {
	Participant string `json:"participant"`
	Fallback    bool   `json:"fallback"`
	LatencyMS   int64  `json:"latency_ms"`
}
