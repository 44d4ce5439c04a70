package tui

import (
	"strings"
	"time"
)

const activityDots = 5

// Ticker flips on every clock tick so a frozen UI is visible.
type Ticker struct {
	frame int
}

func (t *Ticker) Tick() { t.frame ^= 1 }

func (t Ticker) Current() string {
	return [2]string{"⟲", "⟳"}[t.frame]
}

// Activity lights up when an event arrives and fades one dot every two
// seconds.
type Activity struct {
	last time.Time
}

func (a *Activity) Touch(at time.Time) { a.last = at }

// Dots returns how many dots are lit at now.
func (a Activity) Dots(now time.Time) int {
	if a.last.IsZero() {
		return 0
	}
	n := activityDots - int(now.Sub(a.last)/(2*time.Second))
	return max(n, 0)
}

func (a Activity) Last() time.Time { return a.last }

func (a Activity) Render(theme Theme, now time.Time) string {
	lit := a.Dots(now)
	var b strings.Builder
	for i := range activityDots {
		if i < lit {
			b.WriteString(theme.TickerActive.Render("●"))
		} else {
			b.WriteString(theme.TickerInactive.Render("○"))
		}
	}
	return b.String()
}
