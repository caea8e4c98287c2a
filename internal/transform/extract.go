package transform

import (
	"encoding/json"

	"github.com/jmespath/go-jmespath"
)

// extractValue evaluates a compiled JMESPath expression against a message
// decoded as JSON and returns the string form of the result. Messages that
// are not JSON, and expressions that yield nothing, leave the message
// untouched (ok = false).
func extractValue(jp *jmespath.JMESPath, message string) (string, bool) {
	var decoded any
	if err := json.Unmarshal([]byte(message), &decoded); err != nil {
		return "", false
	}
	res, err := jp.Search(decoded)
	if err != nil || res == nil {
		return "", false
	}
	switch v := res.(type) {
	case string:
		if v == "" {
			return "", false
		}
		return v, true
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", false
		}
		s := string(b)
		if s == "null" || s == "[]" || s == "{}" {
			return "", false
		}
		return s, true
	}
}
