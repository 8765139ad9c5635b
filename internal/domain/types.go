package domain

// Segment is one recognized span of speech emitted by the streaming server.
// Text keeps its leading whitespace verbatim: the server uses it to signal
// word-boundary spacing, and it must survive into the injected keystrokes.
type Segment struct {
	StartMs int
	EndMs   int
	Text    string
}

// ResponseStatus is the top-level outcome of a control command.
type ResponseStatus string

const (
	StatusOK    ResponseStatus = "ok"
	StatusError ResponseStatus = "error"
)

// Response is the JSON document written back on the control socket.
type Response struct {
	Status  ResponseStatus `json:"status"`
	Message string         `json:"message,omitempty"`

	// Text carries the full session transcript on a successful stop. A
	// pointer so that an empty transcript still serializes: "no speech
	// detected" is a distinct outcome from an error.
	Text *string `json:"text,omitempty"`

	// Status-command fields.
	Streaming       *bool  `json:"streaming,omitempty"`
	ServerAvailable *bool  `json:"server_available,omitempty"`
	StreamHost      string `json:"stream_host,omitempty"`
	StreamPort      int    `json:"stream_port,omitempty"`
	InputMethod     string `json:"input_method,omitempty"`
}

// Status summarizes the daemon's runtime state for the status command.
type Status struct {
	Streaming       bool
	ServerAvailable bool
	StreamHost      string
	StreamPort      int
	InputMethod     string

	// Text is the transcript accumulated so far, empty when idle.
	Text string
}

// OKResponse builds a plain success response.
func OKResponse(message string) Response {
	return Response{Status: StatusOK, Message: message}
}

// ErrorResponse builds a plain failure response.
func ErrorResponse(message string) Response {
	return Response{Status: StatusError, Message: message}
}
