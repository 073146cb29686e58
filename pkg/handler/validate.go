package handler

import (
	"encoding/json"
	"regexp"
	"strings"
)

const (
	maxRoomNameLen     = 100
	minParticipants    = 1
	maxParticipants    = 1000
	minEmptyTimeout    = 10    // seconds
	maxEmptyTimeout    = 86400 // 24h
	maxMetadataLen     = 1024  // serialized
	defaultParticipant = 10
	defaultTimeout     = 300
)

var roomNameRe = regexp.MustCompile(`^[A-Za-z0-9_\- ]+$`)

// validRoomName accepts 1..100 chars of letters, digits, underscore,
// hyphen, and space; whitespace-only names are rejected.
func validRoomName(name string) bool {
	if strings.TrimSpace(name) == "" || len(name) > maxRoomNameLen {
		return false
	}
	return roomNameRe.MatchString(name)
}

// metadataFits reports whether the serialized metadata stays within the
// provider's size cap.
func metadataFits(metadata map[string]any) bool {
	if len(metadata) == 0 {
		return true
	}
	b, err := json.Marshal(metadata)
	if err != nil {
		return false
	}
	return len(b) <= maxMetadataLen
}
