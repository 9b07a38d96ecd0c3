package tui

import "time"

// NoticeKind selects how a notification is styled.
type NoticeKind int

const (
	NoticeInfo NoticeKind = iota
	NoticeError
)

// Notification is the single line shown above the stages. It stays until
// the next run or the next notification.
type Notification struct {
	Kind NoticeKind
	Text string
	At   time.Time
}

func (m *Model) notify(kind NoticeKind, text string) {
	m.notice = &Notification{Kind: kind, Text: text, At: time.Now()}
	m.dirty = true
	if kind == NoticeError {
		m.logger.Debug().Str("notice", text).Msg("error notification")
	}
}
