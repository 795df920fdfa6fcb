package shell

import (
	"bytes"
	"encoding/json"
	"time"
)

// Server-to-client frames. Each carries exactly one payload key plus an
// ISO-8601 timestamp; error and notice frames are always the last thing
// sent before the connection closes.

type outputFrame struct {
	Output    string `json:"output"`
	Timestamp string `json:"timestamp"`
}

type errorFrame struct {
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

type noticeFrame struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func frameTimestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// initMessage is the first client frame, naming the target container.
type initMessage struct {
	ContainerID   string `json:"containerId"`
	ContainerName string `json:"containerName"`
}

// input is the decoded form of a post-bind client frame: either the
// command envelope or a raw string. The two variants are an explicit
// contract, not a parse-failure heuristic leaking into callers.
type input struct {
	Stdin    string
	Envelope bool
}

// commandEnvelope is the structured client input variant.
type commandEnvelope struct {
	Command string `json:"command"`
}

// decodeInput attempts a strict decode of the command envelope first and
// falls back to treating the bytes as raw stdin.
func decodeInput(data []byte) input {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var env commandEnvelope
	if err := dec.Decode(&env); err == nil && env.Command != "" {
		return input{Stdin: env.Command, Envelope: true}
	}
	return input{Stdin: string(data)}
}
