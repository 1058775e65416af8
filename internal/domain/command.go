package domain

// CommandKind selects a reply strategy.
type CommandKind string

const (
	CmdDefault CommandKind = "default" // plain text reply
	CmdSpoken  CommandKind = "v1"      // text reply + spoken audio
	CmdImage   CommandKind = "v2"      // image generation
	CmdVision  CommandKind = "v3"      // describe an image URL
	CmdUpload  CommandKind = "v4"      // document ingestion from URL
	CmdDocAsk  CommandKind = "v5"      // document QA
)

// Command is a parsed directive. Derived from message text, never stored.
type Command struct {
	Kind    CommandKind
	Payload string
	URL     string // set for CmdVision and CmdUpload
}
