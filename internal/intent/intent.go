package intent

// Type is the classified purpose of one user utterance. The set is
// closed; the assistant branches over it exhaustively.
type Type string

const (
	TypeCreateWorkflow Type = "create_workflow"
	TypeQuery          Type = "query_information"
	TypeStore          Type = "store_context"
	TypeExecuteAction  Type = "execute_action"
	TypeGeneral        Type = "general"
)

// Valid reports whether t is one of the five intent states.
func (t Type) Valid() bool {
	switch t {
	case TypeCreateWorkflow, TypeQuery, TypeStore, TypeExecuteAction, TypeGeneral:
		return true
	}
	return false
}

// Intent is one classified utterance. Action and Params are set only
// for TypeExecuteAction; Action is a fully qualified "tool.action"
// reference.
type Intent struct {
	Type       Type              `json:"type"`
	Action     string            `json:"action,omitempty"`
	Params     map[string]string `json:"params,omitempty"`
	Confidence float64           `json:"confidence"`
}
