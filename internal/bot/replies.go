package bot

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"textbridge/internal/bridge"
	"textbridge/internal/domain"
	"textbridge/internal/markdown"
)

// Leaves room for the header and the pre block markers under Telegram's
// 4096 characters limit.
const maxBodyRunes = 3500

const journalDisabledReply = "✖️ Request journal is not enabled\\."

func formatOutcome(body string, err error) string {
	if err != nil {
		return formatFailure(err)
	}

	if body == "" {
		return "✅ *Response is empty\\.*"
	}

	truncated, cut := truncateRunes(body, maxBodyRunes)

	var b strings.Builder
	b.WriteString("✅ *Response:*\n")
	b.WriteString(markdown.PreV2(truncated))
	if cut {
		fmt.Fprintf(&b, "\n_\\.\\.\\. %d more characters are not shown\\._", utf8.RuneCountInString(body)-maxBodyRunes)
	}

	return b.String()
}

func formatFailure(err error) string {
	var reason string

	switch bridge.KindOf(err) {
	case bridge.KindTransport:
		reason = "Endpoint could not be reached."
	case bridge.KindStatus:
		reason = fmt.Sprintf("Endpoint answered with status %d.", bridge.StatusCodeOf(err))
	case bridge.KindDecode:
		reason = "Request or response was not valid text."
	case bridge.KindCanceled:
		reason = "Request was canceled or took too long."
	default:
		reason = "Request failed."
	}

	return fmt.Sprintf("❌ *Request failed* \\(%s\\)\n%s",
		markdown.EscapeV2(bridge.OutcomeLabel(err)),
		markdown.EscapeV2(reason))
}

func formatHistory(exchanges []domain.Exchange) string {
	if len(exchanges) == 0 {
		return "✖️ History is empty\\."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🕘 *Last %d requests:*\n\n", len(exchanges))

	for _, e := range exchanges {
		line := fmt.Sprintf("%s UTC · %s%s · %d ms · %d → %d bytes",
			e.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			outcomeIcon(e.Outcome),
			statusSuffix(e),
			e.Duration.Milliseconds(),
			e.InputBytes,
			e.OutputBytes,
		)

		b.WriteString(markdown.EscapeV2(line))
		b.WriteString("\n")
	}

	return strings.TrimSuffix(b.String(), "\n")
}

func formatStats(counts []domain.OutcomeCount) string {
	if len(counts) == 0 {
		return "✖️ No requests yet\\."
	}

	var (
		b     strings.Builder
		total int64
	)

	for _, c := range counts {
		total += c.Count
	}

	fmt.Fprintf(&b, "📊 *%d requests:*\n\n", total)

	for _, c := range counts {
		b.WriteString(markdown.EscapeV2(fmt.Sprintf("%s: %d", outcomeIcon(c.Outcome), c.Count)))
		b.WriteString("\n")
	}

	return strings.TrimSuffix(b.String(), "\n")
}

func outcomeIcon(outcome string) string {
	if outcome == "success" {
		return "✅ success"
	}

	return "❌ " + outcome
}

func statusSuffix(e domain.Exchange) string {
	if e.StatusCode == 0 {
		return ""
	}

	return fmt.Sprintf(" %d", e.StatusCode)
}

func truncateRunes(s string, maxRunes int) (string, bool) {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s, false
	}

	i := 0
	for pos := range s {
		if i == maxRunes {
			return s[:pos], true
		}
		i++
	}

	return s, false
}
