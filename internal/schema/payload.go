package schema

// Payload keys read by the analytics layer.
const (
	PayloadCategory  = "category"
	PayloadTool      = "tool"
	PayloadAgentType = "agent_type"
)

// PayloadString extracts a string from a decoded payload. ok is false when
// the key is missing, null, or not a string.
func PayloadString(payload map[string]any, key string) (string, bool) {
	if payload == nil {
		return "", false
	}
	val, ok := payload[key]
	if !ok {
		return "", false
	}
	str, ok := val.(string)
	if !ok {
		return "", false
	}
	return str, true
}
