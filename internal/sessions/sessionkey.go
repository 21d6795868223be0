// Package sessions implements the agent runtime's session history
// persistence: normalising opaque identifiers into session keys and
// storing the append-only message log for each key.
package sessions

import (
	"strings"
)

// DefaultAgentID is used when no agent identifier was supplied.
const DefaultAgentID = "main"

// maxAgentIDLength bounds the normalised agent_id segment.
const maxAgentIDLength = 64

// NormalizeAgentID collapses any characters outside [a-z0-9_-] to '-',
// strips leading/trailing '-', truncates to 64 chars, and lowercases.
// An empty input normalises to DefaultAgentID.
func NormalizeAgentID(raw string) string {
	lower := strings.ToLower(strings.TrimSpace(raw))
	if lower == "" {
		return DefaultAgentID
	}
	var b strings.Builder
	for _, r := range lower {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteRune('-')
		}
	}
	cleaned := strings.Trim(b.String(), "-")
	if len(cleaned) > maxAgentIDLength {
		cleaned = cleaned[:maxAgentIDLength]
	}
	if cleaned == "" {
		return DefaultAgentID
	}
	return cleaned
}

// ResolveOpts are the three ways a caller may identify a session. SessionKey
// takes precedence over SessionID when both are set; AgentID is independent
// of both and names which agent's namespace the key belongs to.
type ResolveOpts struct {
	AgentID    string
	SessionID  string
	SessionKey string
}

// Resolve normalises (agent_id, session_id, session_key) into the canonical
// "agent:<agent_id>:<rest>" form. An already-prefixed SessionKey or SessionID
// ("agent:...") is accepted as-is (lowercased); resolving it again is the
// identity. Otherwise agent_id normalises via NormalizeAgentID, defaulting
// to "main", and rest is SessionKey if set, else SessionID, normalised the
// same way but defaulting to "main" only when neither was supplied — a
// subagent key's "subagent-..." rest survives this normalisation.
func Resolve(opts ResolveOpts) string {
	raw := strings.TrimSpace(opts.SessionKey)
	if raw == "" {
		raw = strings.TrimSpace(opts.SessionID)
	}

	if raw != "" {
		lower := strings.ToLower(raw)
		if strings.HasPrefix(lower, "agent:") {
			return lower
		}
	}

	agentID := NormalizeAgentID(opts.AgentID)
	if raw == "" {
		return "agent:" + agentID + ":main"
	}
	return "agent:" + agentID + ":" + normalizeRest(raw)
}

// normalizeRest applies the same character-collapsing rules as
// NormalizeAgentID to the "rest" segment of a session key, defaulting to
// "main" only when the cleaned result is empty.
func normalizeRest(raw string) string {
	lower := strings.ToLower(strings.TrimSpace(raw))
	var b strings.Builder
	for _, r := range lower {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteRune('-')
		}
	}
	cleaned := strings.Trim(b.String(), "-")
	if len(cleaned) > maxAgentIDLength {
		cleaned = cleaned[:maxAgentIDLength]
	}
	if cleaned == "" {
		return "main"
	}
	return cleaned
}

// NormalizeKey is a convenience wrapper around Resolve for the common case
// of normalising a single opaque session-key argument (matching the
// original implementation's "treat a bare session key as a session_id"
// behaviour).
func NormalizeKey(sessionKey string) string {
	return Resolve(ResolveOpts{SessionID: sessionKey})
}
