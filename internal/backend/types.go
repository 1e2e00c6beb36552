package backend

// Message is one generation request: instructions plus context.
type Message struct {
	System  string // Optional system instructions
	Content string // The request body
}

// Response is the generation service's reply.
type Response struct {
	Content      string
	Model        string
	InputTokens  int64
	OutputTokens int64
}

// Config selects and configures a generation backend.
type Config struct {
	Type       string // "anthropic", "bedrock" or "claude"
	Model      string
	APIKey     string // Anthropic API key; falls back to ANTHROPIC_API_KEY
	MaxTokens  int64
	Command    string // CLI binary for the "claude" type
	WorkDir    string // Working directory for CLI subprocesses
	AWSRegion  string // Bedrock region
	AWSProfile string // Optional shared-config profile for Bedrock
}
