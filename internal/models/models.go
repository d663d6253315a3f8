package models

// Storage keys. Everything lives in the local area except the trackVisits preference.
const (
	KeyQueue           = "queue"
	KeyAutoConnectMode = "autoConnectMode"
	KeyCurrentTarget   = "currentTarget"
	KeyVisitData       = "visitData"
	KeyClients         = "clients"
	KeyActiveClient    = "activeClient"
	KeyTags            = "tags"
	KeyNotes           = "notes"
	KeyLogs            = "logs"
	KeyPreviewProfile  = "previewProfile"
	KeyTrackVisits     = "trackVisits"
)

// QueueEntry is one pending outreach target. Delay is the number of minutes the
// scheduler waits after consuming this entry before consuming the next one.
type QueueEntry struct {
	URL          string  `json:"url"`
	DelayMinutes float64 `json:"delay"`
}

type VisitRecord struct {
	Visits    int   `json:"visits"`
	TotalTime int64 `json:"totalTime"` // milliseconds
}

type Outcome string

const (
	OutcomeSent           Outcome = "sent"
	OutcomeConnectMissing Outcome = "connect_missing"
	OutcomeStepTimeout    Outcome = "step_timeout"
	OutcomeManual         Outcome = "manual"
)

type LogEntry struct {
	Name       string  `json:"name"`
	ClientName string  `json:"clientName"`
	Datetime   string  `json:"datetime"`
	ProfileURL string  `json:"profileUrl"`
	Replied    bool    `json:"replied"`
	Outcome    Outcome `json:"outcome,omitempty"`
}

type Template struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

type Client struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Templates    []Template `json:"templates"`
	DefaultIndex int        `json:"defaultIndex"`
}

// PreviewProfile holds the values most recently substituted into a note, so the
// template editor can preview against a real profile.
type PreviewProfile struct {
	FirstName string `json:"firstName"`
	Title     string `json:"title"`
	Company   string `json:"company"`
	Tag       string `json:"tag"`
}
