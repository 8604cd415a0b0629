package meal

// Completion is the derived state of an athlete over an evaluation window.
type Completion int

const (
	None Completion = iota
	Partial
	Full
)

// Classify is total over the four (hasLunch, hasDinner) combinations.
func Classify(hasLunch, hasDinner bool) Completion {
	switch {
	case hasLunch && hasDinner:
		return Full
	case hasLunch || hasDinner:
		return Partial
	default:
		return None
	}
}

func (c Completion) String() string {
	switch c {
	case Full:
		return "full"
	case Partial:
		return "partial"
	default:
		return "none"
	}
}

// Color is the dashboard row colour.
func (c Completion) Color() string {
	switch c {
	case Full:
		return "green"
	case Partial:
		return "yellow"
	default:
		return "red"
	}
}

func (c Completion) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// DayView is one athlete's state for a single date.
type DayView struct {
	Date       string      `json:"date"`
	Lunch      *Submission `json:"lunch"`
	Dinner     *Submission `json:"dinner"`
	Completion Completion  `json:"completion"`
}

// Day picks at most one record per meal type for date from records. Records
// for other dates are ignored.
func Day(date string, records []Submission) DayView {
	v := DayView{Date: date}
	for i := range records {
		r := records[i]
		if r.Date != date {
			continue
		}
		switch r.Meal {
		case Lunch:
			if v.Lunch == nil {
				v.Lunch = &r
			}
		case Dinner:
			if v.Dinner == nil {
				v.Dinner = &r
			}
		}
	}
	v.Completion = Classify(v.Lunch != nil, v.Dinner != nil)
	return v
}

// AthleteSummary is an athlete's state flattened over a date range.
type AthleteSummary struct {
	Athlete     Athlete      `json:"athlete"`
	HasLunch    bool         `json:"has_lunch"`
	HasDinner   bool         `json:"has_dinner"`
	Completion  Completion   `json:"completion"`
	Color       string       `json:"color"`
	LateCount   int          `json:"late_count"`
	Submissions []Submission `json:"submissions"`
}

// Summarize builds one summary per roster athlete in roster order. The range
// is one bucket: lunch on one day and dinner on another counts as full.
// Records of athletes outside the roster are dropped.
func Summarize(roster []Athlete, records []Submission) []AthleteSummary {
	byAthlete := make(map[string][]Submission, len(roster))
	for _, r := range records {
		byAthlete[r.AthleteID] = append(byAthlete[r.AthleteID], r)
	}

	out := make([]AthleteSummary, 0, len(roster))
	for _, a := range roster {
		s := AthleteSummary{Athlete: a, Submissions: byAthlete[a.ID]}
		if s.Submissions == nil {
			s.Submissions = []Submission{}
		}
		for _, r := range s.Submissions {
			switch r.Meal {
			case Lunch:
				s.HasLunch = true
			case Dinner:
				s.HasDinner = true
			}
			if r.Late {
				s.LateCount++
			}
		}
		s.Completion = Classify(s.HasLunch, s.HasDinner)
		s.Color = s.Completion.Color()
		out = append(out, s)
	}
	return out
}

// Tally counts summaries per completion state.
type Tally struct {
	Full    int `json:"full"`
	Partial int `json:"partial"`
	None    int `json:"none"`
}

func Count(summaries []AthleteSummary) Tally {
	var t Tally
	for _, s := range summaries {
		switch s.Completion {
		case Full:
			t.Full++
		case Partial:
			t.Partial++
		default:
			t.None++
		}
	}
	return t
}
