package catalog

import "fmt"

// ExecKind selects the execution strategy for a tool. The set is
// closed: dispatch switches over it exhaustively, so adding a kind is
// a compile-time exercise, not a runtime discovery.
type ExecKind string

const (
	KindLocal          ExecKind = "local"
	KindRemoteProtocol ExecKind = "remote_protocol"
	KindGenericAPI     ExecKind = "generic_api"
)

type ParamType string

const (
	TypeString  ParamType = "string"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
	TypeArray   ParamType = "array"
	TypeObject  ParamType = "object"
)

type Param struct {
	Name     string
	Type     ParamType
	Required bool
	Default  any
}

// Action is one invocable operation on a tool. Its ID is unique within
// the owning tool; the fully qualified reference is "<toolID>.<actionID>".
type Action struct {
	ID     string
	Name   string
	Params []Param
}

// RemoteConfig configures a remote-protocol tool: calls are relayed
// through the execution proxy to the named upstream server.
type RemoteConfig struct {
	ServerURL string
	Transport string
}

// APIConfig configures a generic-api tool. Present in the catalog for
// forward compatibility; dispatch does not support this kind yet.
type APIConfig struct {
	BaseURL    string
	AuthHeader string
}

// ToolDefinition is an immutable catalog entry. Exactly one of Remote
// and API is set, matching Kind; local tools carry neither.
type ToolDefinition struct {
	ID                 string
	Name               string
	Kind               ExecKind
	Remote             *RemoteConfig
	API                *APIConfig
	Category           string
	Actions            []Action
	PreConfigured      bool
	RequiresCredential bool
}

// Action returns the action with the given ID, if declared.
func (d ToolDefinition) Action(id string) (Action, bool) {
	for _, a := range d.Actions {
		if a.ID == id {
			return a, true
		}
	}
	return Action{}, false
}

var definitions = []ToolDefinition{
	{
		ID:            "dashboard.memory",
		Name:          "Memory",
		Kind:          KindLocal,
		Category:      "dashboard",
		PreConfigured: true,
		Actions: []Action{
			{ID: "search", Name: "Search memories", Params: []Param{
				{Name: "query", Type: TypeString, Required: true},
				{Name: "limit", Type: TypeNumber, Default: 10},
			}},
			{ID: "save", Name: "Save a memory", Params: []Param{
				{Name: "title", Type: TypeString},
				{Name: "content", Type: TypeString, Required: true},
			}},
			{ID: "list", Name: "List recent memories", Params: []Param{
				{Name: "limit", Type: TypeNumber, Default: 20},
			}},
		},
	},
	{
		ID:            "dashboard.api_keys",
		Name:          "API Keys",
		Kind:          KindLocal,
		Category:      "dashboard",
		PreConfigured: true,
		Actions: []Action{
			{ID: "list", Name: "List API keys"},
			{ID: "create", Name: "Create an API key", Params: []Param{
				{Name: "label", Type: TypeString, Required: true},
			}},
			{ID: "revoke", Name: "Revoke an API key", Params: []Param{
				{Name: "key_id", Type: TypeString, Required: true},
			}},
		},
	},
	{
		ID:            "dashboard.usage",
		Name:          "Usage",
		Kind:          KindLocal,
		Category:      "dashboard",
		PreConfigured: true,
		Actions: []Action{
			{ID: "summary", Name: "Usage summary", Params: []Param{
				{Name: "period", Type: TypeString, Default: "month"},
			}},
		},
	},
	{
		ID:                 "integrations.github",
		Name:               "GitHub",
		Kind:               KindRemoteProtocol,
		Remote:             &RemoteConfig{ServerURL: "https://mcp.github.dev", Transport: "sse"},
		Category:           "integrations",
		RequiresCredential: true,
		Actions: []Action{
			{ID: "create_issue", Name: "Create an issue", Params: []Param{
				{Name: "repo", Type: TypeString, Required: true},
				{Name: "title", Type: TypeString, Required: true},
				{Name: "body", Type: TypeString},
			}},
			{ID: "list_issues", Name: "List issues", Params: []Param{
				{Name: "repo", Type: TypeString, Required: true},
				{Name: "state", Type: TypeString, Default: "open"},
			}},
		},
	},
	{
		ID:                 "integrations.slack",
		Name:               "Slack",
		Kind:               KindRemoteProtocol,
		Remote:             &RemoteConfig{ServerURL: "https://mcp.slack.dev", Transport: "sse"},
		Category:           "integrations",
		RequiresCredential: true,
		Actions: []Action{
			{ID: "send_message", Name: "Send a message", Params: []Param{
				{Name: "channel", Type: TypeString, Required: true},
				{Name: "text", Type: TypeString, Required: true},
			}},
		},
	},
	{
		ID:       "web.request",
		Name:     "Web Request",
		Kind:     KindGenericAPI,
		API:      &APIConfig{AuthHeader: "Authorization"},
		Category: "web",
		Actions: []Action{
			{ID: "get", Name: "HTTP GET", Params: []Param{
				{Name: "url", Type: TypeString, Required: true},
			}},
		},
	},
}

func init() {
	if err := validate(definitions); err != nil {
		panic(fmt.Sprintf("catalog: %v", err))
	}
}

func validate(defs []ToolDefinition) error {
	seen := make(map[string]bool, len(defs))
	for _, d := range defs {
		if seen[d.ID] {
			return fmt.Errorf("duplicate tool ID %q", d.ID)
		}
		seen[d.ID] = true

		actions := make(map[string]bool, len(d.Actions))
		for _, a := range d.Actions {
			if actions[a.ID] {
				return fmt.Errorf("tool %q: duplicate action ID %q", d.ID, a.ID)
			}
			actions[a.ID] = true
		}
	}
	return nil
}

// All returns every tool definition in stable declaration order.
func All() []ToolDefinition {
	out := make([]ToolDefinition, len(definitions))
	copy(out, definitions)
	return out
}

// Lookup returns the definition for the given tool ID.
func Lookup(id string) (ToolDefinition, bool) {
	for _, d := range definitions {
		if d.ID == id {
			return d, true
		}
	}
	return ToolDefinition{}, false
}
