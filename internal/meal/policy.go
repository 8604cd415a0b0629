package meal

import (
	"fmt"
	"time"
)

// Window is a meal's submission window as offsets from local midnight.
// Uploads at or after LateAfter are late; at or after Cutoff they are refused.
type Window struct {
	Meal      Type
	LateAfter time.Duration
	Cutoff    time.Duration
}

// ParseWindow builds a Window from "HH:MM" strings.
func ParseWindow(meal, lateAfter, cutoff string) (Window, error) {
	t, err := ParseType(meal)
	if err != nil {
		return Window{}, err
	}
	late, err := parseClock(lateAfter)
	if err != nil {
		return Window{}, fmt.Errorf("%s late_after: %w", meal, err)
	}
	cut, err := parseClock(cutoff)
	if err != nil {
		return Window{}, fmt.Errorf("%s cutoff: %w", meal, err)
	}
	return Window{Meal: t, LateAfter: late, Cutoff: cut}, nil
}

func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("want HH:MM, got %q", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// Policy decides whether an upload is accepted and whether it is late.
type Policy struct {
	windows map[Type]Window
}

// DefaultWindows: lunch late at 13:00, closed at 17:00; dinner late at 19:00,
// closed at 23:00.
var DefaultWindows = []Window{
	{Meal: Lunch, LateAfter: 13 * time.Hour, Cutoff: 17 * time.Hour},
	{Meal: Dinner, LateAfter: 19 * time.Hour, Cutoff: 23 * time.Hour},
}

// NewPolicy validates the windows. Every meal type needs exactly one window.
func NewPolicy(windows ...Window) (*Policy, error) {
	p := &Policy{windows: make(map[Type]Window, len(windows))}
	for _, w := range windows {
		if _, err := ParseType(string(w.Meal)); err != nil {
			return nil, err
		}
		if _, dup := p.windows[w.Meal]; dup {
			return nil, fmt.Errorf("duplicate window for %s", w.Meal)
		}
		if w.LateAfter > w.Cutoff {
			return nil, fmt.Errorf("%s: late_after must not be after cutoff", w.Meal)
		}
		if w.Cutoff > 24*time.Hour {
			return nil, fmt.Errorf("%s: cutoff beyond end of day", w.Meal)
		}
		p.windows[w.Meal] = w
	}
	for _, t := range Types {
		if _, ok := p.windows[t]; !ok {
			return nil, fmt.Errorf("missing window for %s", t)
		}
	}
	return p, nil
}

// DefaultPolicy returns the policy built from DefaultWindows.
func DefaultPolicy() *Policy {
	p, err := NewPolicy(DefaultWindows...)
	if err != nil {
		panic(err)
	}
	return p
}

// Window returns the configured window for meal.
func (p *Policy) Window(meal Type) (Window, bool) {
	w, ok := p.windows[meal]
	return w, ok
}

// Decision is the outcome of evaluating an upload attempt.
type Decision struct {
	Accepted bool   `json:"accepted"`
	Late     bool   `json:"late"`
	Replaces bool   `json:"replaces"`
	Reason   string `json:"reason,omitempty"`
}

// Evaluate applies the window for meal to the local wall-clock time. It is a
// pure function of its inputs; existing only sets Replaces.
func (p *Policy) Evaluate(meal Type, local time.Time, existing *Submission) Decision {
	w, ok := p.windows[meal]
	if !ok {
		return Decision{Reason: fmt.Sprintf("unknown meal type %q", meal)}
	}
	tod := timeOfDay(local)
	if tod >= w.Cutoff {
		return Decision{Reason: fmt.Sprintf("%s submissions close at %s", meal, clock(w.Cutoff))}
	}
	return Decision{
		Accepted: true,
		Late:     tod >= w.LateAfter,
		Replaces: existing != nil,
	}
}

func timeOfDay(t time.Time) time.Duration {
	h, m, s := t.Clock()
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second + time.Duration(t.Nanosecond())
}

func clock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}
