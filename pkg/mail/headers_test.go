package mail

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vnykmshr/sendgate/internal/testutil"
)

var sendTime = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func TestHeaders(t *testing.T) {
	cfg := testConfig()
	h := Headers(cfg, "ada@example.org", sendTime)

	id := h[HeaderMessageID]
	if !strings.HasPrefix(id, "<20240301090000.") || !strings.HasSuffix(id, "@example.com>") {
		t.Errorf("Message-ID = %q", id)
	}
	testutil.AssertEqual(t, h[HeaderDate], "Fri, 01 Mar 2024 09:00:00 +0000")
	testutil.AssertEqual(t, h[HeaderReturnPath], "news@example.com")
	testutil.AssertEqual(t, h[HeaderListUnsubscribe],
		"<https://example.com/unsubscribe>, <mailto:unsubscribe@example.com?subject=unsubscribe>")
	testutil.AssertEqual(t, h[HeaderListUnsubscribePost], "List-Unsubscribe=One-Click")

	if !strings.HasPrefix(h[HeaderFeedbackID], "welcome:news:20240301:") {
		t.Errorf("Feedback-ID = %q", h[HeaderFeedbackID])
	}
	if _, err := uuid.Parse(h[HeaderEntityRefID]); err != nil {
		t.Errorf("X-Entity-Ref-ID = %q is not a UUID", h[HeaderEntityRefID])
	}
}

func TestHeaders_StablePerRecipient(t *testing.T) {
	cfg := testConfig()

	a := Headers(cfg, "ada@example.org", sendTime)
	b := Headers(cfg, "ADA@example.org", sendTime)
	c := Headers(cfg, "bob@example.org", sendTime)

	testutil.AssertEqual(t, a[HeaderMessageID], b[HeaderMessageID])
	testutil.AssertNotEqual(t, a[HeaderMessageID], c[HeaderMessageID])
	testutil.AssertNotEqual(t, a[HeaderEntityRefID], b[HeaderEntityRefID])
}

func TestHeaders_LocalTimeIsUTC(t *testing.T) {
	amsterdam := time.FixedZone("CET", 3600)
	h := Headers(testConfig(), "ada@example.org", sendTime.In(amsterdam))

	testutil.AssertEqual(t, h[HeaderDate], "Fri, 01 Mar 2024 09:00:00 +0000")
}

func TestMergeHeaders(t *testing.T) {
	base := Headers(testConfig(), "ada@example.org", sendTime)
	custom := map[string]string{
		"X-Priority":             "3",
		"list-unsubscribe":       "<mailto:unsubscribe@example.com?subject=unsubscribe>",
		"Authentication-Results": "spf=pass",
		"Received-SPF":           "pass",
		"to":                     "someone-else@example.org",
	}

	h := MergeHeaders(base, custom)

	testutil.AssertEqual(t, h["X-Priority"], "3")
	testutil.AssertEqual(t, h[HeaderListUnsubscribe], "<mailto:unsubscribe@example.com?subject=unsubscribe>")
	for _, blocked := range []string{"Authentication-Results", "Received-Spf", "To"} {
		if _, ok := h[blocked]; ok {
			t.Errorf("header %s should have been dropped", blocked)
		}
	}
	testutil.AssertEqual(t, h[HeaderMessageID], base[HeaderMessageID])
	testutil.AssertEqual(t, len(h), len(base)+1)
}
