package mail

import (
	"fmt"
	"hash/fnv"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Header names set by Headers.
const (
	HeaderMessageID           = "Message-Id"
	HeaderDate                = "Date"
	HeaderReturnPath          = "Return-Path"
	HeaderListUnsubscribe     = "List-Unsubscribe"
	HeaderListUnsubscribePost = "List-Unsubscribe-Post"
	HeaderFeedbackID          = "Feedback-Id"
	HeaderEntityRefID         = "X-Entity-Ref-Id"
)

// blockedHeaders are never copied from caller supplied headers. They are
// added by receiving servers and confuse spam filters when present.
var blockedHeaders = map[string]bool{
	"Authentication-Results": true,
	"Received-Spf":           true,
}

// addressHeaders are set from Config and Email, never from custom headers.
var addressHeaders = map[string]bool{
	"From": true,
	"To":   true,
	"Cc":   true,
	"Bcc":  true,
}

// Headers returns the deliverability headers for a message to recipient,
// keyed by canonical header name.
func Headers(cfg Config, recipient string, now time.Time) map[string]string {
	now = now.UTC()
	hash := recipientHash(recipient)

	return map[string]string{
		HeaderMessageID:           fmt.Sprintf("<%s.%d@%s>", now.Format("20060102150405"), hash, cfg.Domain),
		HeaderDate:                now.Format(time.RFC1123Z),
		HeaderReturnPath:          cfg.Sender,
		HeaderListUnsubscribe:     fmt.Sprintf("<https://%s/unsubscribe>, <mailto:unsubscribe@%s?subject=unsubscribe>", cfg.Domain, cfg.Domain),
		HeaderListUnsubscribePost: "List-Unsubscribe=One-Click",
		HeaderFeedbackID:          fmt.Sprintf("%s:%s:%s:%d", cfg.FeedbackCampaign, localPart(cfg.Sender), now.Format("20060102"), hash),
		HeaderEntityRefID:         uuid.NewString(),
	}
}

// MergeHeaders overlays custom on base. Blocked and address headers in
// custom are dropped; everything else replaces the default.
func MergeHeaders(base, custom map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(custom))
	for k, v := range base {
		out[textproto.CanonicalMIMEHeaderKey(k)] = v
	}
	for k, v := range custom {
		key := textproto.CanonicalMIMEHeaderKey(k)
		if blockedHeaders[key] || addressHeaders[key] {
			continue
		}
		out[key] = v
	}
	return out
}

func recipientHash(recipient string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.ToLower(recipient)))
	return h.Sum64()
}

func localPart(addr string) string {
	if at := strings.LastIndex(addr, "@"); at >= 0 {
		return addr[:at]
	}
	return addr
}
