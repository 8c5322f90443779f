// Package events owns the canonical event vocabulary: the enumerated set
// of identifiers webhooks may subscribe to, and the static table mapping
// internal and legacy names onto it.
package events

import (
	"sort"
)

// Canonical identifiers in the current naming scheme.
const (
	SessionQR            = "session.qr"
	SessionQRTimeout     = "session.qr_timeout"
	SessionAuthenticated = "session.authenticated"
	SessionReady         = "session.ready"
	SessionDisconnected  = "session.disconnected"
	SessionFailed        = "session.failed"
	MessageReceived      = "message.received"
	MessageSent          = "message.sent"
	MessageAck           = "message.ack"
	GroupJoin            = "group.join"
	GroupLeave           = "group.leave"
	CallReceived         = "call.received"
)

// Wildcard tokens accepted at registration time. They are expanded to the
// full canonical set before a subscription is stored.
const (
	WildcardStar = "*"
	WildcardAll  = "ALL"
)

// routes maps every internal or legacy event name to the canonical
// identifiers it publishes under. The legacy flat names (qr, ready,
// message, ...) predate the dotted scheme and stay routable so existing
// subscriptions keep receiving events. Adding a naming scheme is a data
// change here, not a logic change.
var routes = map[string][]string{
	SessionQR:            {SessionQR, "qr"},
	SessionQRTimeout:     {SessionQRTimeout, "qr_timeout"},
	SessionAuthenticated: {SessionAuthenticated, "authenticated"},
	SessionReady:         {SessionReady, "ready"},
	SessionDisconnected:  {SessionDisconnected, "disconnected"},
	SessionFailed:        {SessionFailed, "auth_failure"},
	MessageReceived:      {MessageReceived, "message"},
	MessageSent:          {MessageSent},
	MessageAck:           {MessageAck, "message_ack"},
	GroupJoin:            {GroupJoin, "group_join"},
	GroupLeave:           {GroupLeave, "group_leave"},
	CallReceived:         {CallReceived, "call"},

	// Legacy names are accepted as inputs too, so upstream producers that
	// still emit the flat scheme route identically.
	"qr":            {SessionQR, "qr"},
	"qr_timeout":    {SessionQRTimeout, "qr_timeout"},
	"authenticated": {SessionAuthenticated, "authenticated"},
	"ready":         {SessionReady, "ready"},
	"disconnected":  {SessionDisconnected, "disconnected"},
	"auth_failure":  {SessionFailed, "auth_failure"},
	"message":       {MessageReceived, "message"},
	"message_ack":   {MessageAck, "message_ack"},
	"group_join":    {GroupJoin, "group_join"},
	"group_leave":   {GroupLeave, "group_leave"},
	"call":          {CallReceived, "call"},
}

// canonical is the full enumerated set, derived from the routing table.
var canonical = func() map[string]struct{} {
	set := make(map[string]struct{})
	for _, targets := range routes {
		for _, t := range targets {
			set[t] = struct{}{}
		}
	}
	return set
}()

// Resolve returns the deduplicated canonical identifiers an internal event
// name publishes under. Unknown names pass through unchanged so message
// producers added upstream do not silently drop events.
func Resolve(internal string) []string {
	targets, ok := routes[internal]
	if !ok {
		return []string{internal}
	}

	seen := make(map[string]struct{}, len(targets))
	out := make([]string, 0, len(targets))
	for _, t := range targets {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// IsCanonical reports whether name is a member of the enumerated set.
func IsCanonical(name string) bool {
	_, ok := canonical[name]
	return ok
}

// IsWildcard reports whether token is a wildcard subscription request.
func IsWildcard(token string) bool {
	return token == WildcardStar || token == WildcardAll
}

// All returns the full canonical set, sorted for stable storage and output.
func All() []string {
	out := make([]string, 0, len(canonical))
	for name := range canonical {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
