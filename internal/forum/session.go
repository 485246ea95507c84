package forum

import (
	"regexp"
	"strings"

	"github.com/biodoia/roundtable/pkg/models"
	"github.com/google/uuid"
)

var nonAlnum = regexp.MustCompile(`[^0-9a-zA-Z]+`)

// Slugify riduce il topic a un identificatore ASCII; "topic" se non resta nulla
func Slugify(value string) string {
	slug := strings.ToLower(strings.Trim(nonAlnum.ReplaceAllString(value, "-"), "-"))
	if slug == "" {
		return "topic"
	}
	return slug
}

// CLISessionID è stabile per topic: riusare il topic riprende la sessione
func CLISessionID(topic string) string {
	return "multi-chat-" + Slugify(topic)
}

// APISessionID è univoco per invocazione
func APISessionID(topic string) string {
	return "api-multi-chat-" + Slugify(topic) + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// ResolveSessionID privilegia l'id fornito dal chiamante
func ResolveSessionID(requested, topic string, mode models.SessionMode) string {
	if id := strings.TrimSpace(requested); id != "" {
		return id
	}
	if mode == models.SessionModeAPI {
		return APISessionID(topic)
	}
	return CLISessionID(topic)
}
