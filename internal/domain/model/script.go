package model

type ScriptSource string

const (
	ScriptStatic ScriptSource = "static"
	ScriptLLM    ScriptSource = "llm"
)

// AssemblyScript is the render script written for a project.
type AssemblyScript struct {
	ProjectID  string       `json:"project_id"`
	Path       string       `json:"path"`
	Body       string       `json:"body"`
	Source     ScriptSource `json:"source"`
	Iterations int          `json:"iterations"`
	Accepted   bool         `json:"accepted"`
}
