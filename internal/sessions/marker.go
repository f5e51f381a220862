// internal/sessions/marker.go
// The backend only carries plain text between users, so a call session id
// rides inside the message body as [SESSION_ID:<id>].

package sessions

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/imadgeboyega/kiekky-client/internal/api"
)

var (
	markerPattern = regexp.MustCompile(`(?i)\[SESSION_ID:\s*(\d+)\s*\]`)
	linkPattern   = regexp.MustCompile(`https?://[^\s<>"]+`)

	// a marker with the blanks that separated it from the preceding word
	strippedPattern = regexp.MustCompile(`(?i)[ \t]*\[SESSION_ID:\s*\d+\s*\]`)
)

// EmbedSessionMarker appends the marker for sessionID to text
func EmbedSessionMarker(text string, sessionID int64) string {
	marker := fmt.Sprintf("[SESSION_ID:%d]", sessionID)
	text = strings.TrimSpace(text)
	if text == "" {
		return marker
	}
	return text + " " + marker
}

// ExtractSessionID returns the first session id embedded in text
func ExtractSessionID(text string) (int64, bool) {
	match := markerPattern.FindStringSubmatch(text)
	if match == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// StripMarkerForDisplay removes every marker. This is the only form of the
// text a user should ever see.
func StripMarkerForDisplay(text string) string {
	return strings.TrimSpace(strippedPattern.ReplaceAllString(text, ""))
}

// ExtractLink returns the first http(s) URL of the display text
func ExtractLink(text string) (string, bool) {
	link := linkPattern.FindString(StripMarkerForDisplay(text))
	if link == "" {
		return "", false
	}
	return strings.TrimRight(link, ".,;:!?)"), true
}

// Kind of message from the handshake's point of view
type Kind string

const (
	KindPlain         Kind = "plain"
	KindSessionInvite Kind = "session_invite"
)

// Envelope is a typed view over a raw chat message
type Envelope struct {
	Kind      Kind   `json:"kind"`
	Text      string `json:"text"`
	SessionID int64  `json:"session_id,omitempty"`
	Link      string `json:"link,omitempty"`
}

// Classify decodes a raw message body into an Envelope
func Classify(content string) Envelope {
	env := Envelope{Kind: KindPlain, Text: StripMarkerForDisplay(content)}
	if id, ok := ExtractSessionID(content); ok {
		env.Kind = KindSessionInvite
		env.SessionID = id
	}
	if link, ok := ExtractLink(content); ok {
		env.Link = link
	}
	return env
}

// IsInitiator reports whether the local user authored the session-bearing message
func IsInitiator(message api.Message, localUserID int64) bool {
	return message.Sender.ID == localUserID
}
