package cache

import (
	"fmt"
	"time"
)

const (
	PublishedKey    = "submissions:published"
	PublishedGenKey = "submissions:published:gen"
	RevokedKeyFmt   = "revoked:%s"
	WSTicketKeyFmt  = "ws_ticket:%s"
	EventsChannel   = "moderation:events"
	PublishedTTL    = time.Minute
	WSTicketTTL     = 30 * time.Second
	minRevocationTT = time.Second
)

func RevokedKey(tokenID string) string {
	return fmt.Sprintf(RevokedKeyFmt, tokenID)
}

func WSTicketKey(ticket string) string {
	return fmt.Sprintf(WSTicketKeyFmt, ticket)
}
