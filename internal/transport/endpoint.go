package transport

import (
	"net/url"
	"strings"
)

// EndpointURL builds the chat endpoint ws://<host>/ws/chat/<userID>. Hosts
// given with an http(s) or ws(s) scheme keep their security level.
func EndpointURL(host, userID string) string {
	scheme := "ws://"
	switch {
	case strings.HasPrefix(host, "https://"):
		scheme, host = "wss://", strings.TrimPrefix(host, "https://")
	case strings.HasPrefix(host, "http://"):
		host = strings.TrimPrefix(host, "http://")
	case strings.HasPrefix(host, "wss://"):
		scheme, host = "wss://", strings.TrimPrefix(host, "wss://")
	case strings.HasPrefix(host, "ws://"):
		host = strings.TrimPrefix(host, "ws://")
	}
	host = strings.TrimRight(host, "/")
	return scheme + host + "/ws/chat/" + url.PathEscape(userID)
}
