package bot

import (
	"fmt"
	"strings"

	"github.com/liyubing19/telegram-bot/internal/domain"
)

// escapeMD escapes text for Telegram MarkdownV2 outside of code spans.
func escapeMD(s string) string {
	const special = "_*[]()~`>#+-=|{}.!\\"
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(special, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// escapeCode escapes text placed inside a MarkdownV2 `code` span.
func escapeCode(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	return strings.ReplaceAll(s, "`", "\\`")
}

func formatRecord(r domain.Record) string {
	var b strings.Builder
	if r.Phone != "" {
		fmt.Fprintf(&b, "Phone: `%s`\n", escapeCode(r.Phone))
	}
	fmt.Fprintf(&b, "Name: `%s`\nCardno: `%s`", escapeCode(r.Name), escapeCode(r.CardNo))
	return b.String()
}

func formatRecords(records []domain.Record) string {
	parts := make([]string, 0, len(records))
	for _, r := range records {
		parts = append(parts, formatRecord(r))
	}
	return strings.Join(parts, "\n\n")
}

func formatProfile(username string, userID int64, a domain.Account) string {
	if username == "" {
		username = "not set"
	}
	checked := "not checked in"
	if a.CheckedIn {
		checked = "checked in"
	}
	return fmt.Sprintf("👤 *Profile*\n\n"+
		"🧑🏻‍💻 *Username:* @%s\n"+
		"🆔 *ID:* `%d`\n"+
		"🔍 *Points:* %d\n"+
		"👑 *Invited:* %d\n"+
		"✍🏻 *Check\\-in:* %s",
		escapeMD(username), userID, a.Points, a.Invitations, escapeMD(checked))
}
