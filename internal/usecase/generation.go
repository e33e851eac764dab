package usecase

import (
	"encoding/json"
	"errors"
	"strings"
)

var errNoJSONObject = errors.New("resposta sem objeto JSON")

// decodeJSONReply tolera cercas de markdown e texto em volta do objeto.
func decodeJSONReply(raw string, out any) error {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return errNoJSONObject
	}
	return json.Unmarshal([]byte(s[start:end+1]), out)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
