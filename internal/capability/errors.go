package capability

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrToolNotFound reports a dispatch against a tool the catalog
	// does not declare.
	ErrToolNotFound = errors.New("tool not found")

	// ErrPermissionDenied reports a dispatch the user has not
	// authorized. Callers that render user-facing text should collapse
	// this with ErrToolNotFound; see Registry.Dispatch.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrCredentialRequired reports a remote tool that declares
	// RequiresCredential with no credential stored.
	ErrCredentialRequired = errors.New("credential required")

	// ErrRemoteExecutionFailed wraps transport and non-2xx failures
	// from the execution proxy.
	ErrRemoteExecutionFailed = errors.New("remote execution failed")

	// ErrUnsupported reports an execution kind dispatch cannot serve.
	ErrUnsupported = errors.New("execution kind not supported")

	// ErrInvalidActionRef reports a malformed "tool.action" reference.
	ErrInvalidActionRef = errors.New("invalid action reference")
)

// SplitActionRef splits a fully qualified "<toolID>.<actionID>"
// reference at its last dot. Tool IDs are themselves dotted
// ("dashboard.api_keys"), so only the final segment is the action.
func SplitActionRef(ref string) (toolID, actionID string, err error) {
	i := strings.LastIndex(ref, ".")
	if i <= 0 || i == len(ref)-1 {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidActionRef, ref)
	}
	return ref[:i], ref[i+1:], nil
}
