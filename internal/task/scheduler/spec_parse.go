package scheduler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type SpecKind int

const (
	SpecCron SpecKind = iota
	SpecInterval
)

func (k SpecKind) String() string {
	if k == SpecInterval {
		return "interval"
	}
	return "cron"
}

// ParsedSpec is a normalized schedule.
type ParsedSpec struct {
	Kind  SpecKind
	Cron  string
	Every time.Duration
}

// String renders the spec in the form the cron parser accepts.
func (p ParsedSpec) String() string {
	if p.Kind == SpecInterval {
		return "@every " + p.Every.String()
	}
	return p.Cron
}

var reHHMM = regexp.MustCompile(`^(\d{1,3}):(\d{2})$`)

// ParseSchedule accepts:
//   - cron expressions and descriptors: "*/10 * * * *", "@hourly", "@every 10m"
//   - Go durations: "600s", "1h30m"
//   - HH:MM intervals: "00:10" is ten minutes
//   - a bare number of seconds: "600"
//
// "cron:" and "every:" prefixes force the interpretation.
func ParseSchedule(raw string) (ParsedSpec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ParsedSpec{}, fmt.Errorf("schedule required")
	}
	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "cron:"):
		expr := strings.TrimSpace(s[len("cron:"):])
		if expr == "" {
			return ParsedSpec{}, fmt.Errorf("cron expression required after %q", "cron:")
		}
		return ParsedSpec{Kind: SpecCron, Cron: expr}, nil
	case strings.HasPrefix(low, "every:"):
		d, err := parseEvery(s[len("every:"):])
		if err != nil {
			return ParsedSpec{}, err
		}
		return ParsedSpec{Kind: SpecInterval, Every: d}, nil
	case strings.HasPrefix(low, "@every "):
		d, err := parseEvery(s[len("@every "):])
		if err != nil {
			return ParsedSpec{}, err
		}
		return ParsedSpec{Kind: SpecInterval, Every: d}, nil
	case strings.HasPrefix(s, "@") || strings.ContainsAny(s, " \t"):
		return ParsedSpec{Kind: SpecCron, Cron: s}, nil
	}
	d, err := parseEvery(s)
	if err != nil {
		return ParsedSpec{}, fmt.Errorf("invalid schedule %q (use a cron expression, HH:MM, seconds or a duration like 10m)", raw)
	}
	return ParsedSpec{Kind: SpecInterval, Every: d}, nil
}

func parseEvery(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	var d time.Duration
	if m := reHHMM.FindStringSubmatch(v); m != nil {
		hh, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		if mm > 59 {
			return 0, fmt.Errorf("invalid minutes in %q", v)
		}
		d = time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
	} else if n, err := strconv.Atoi(v); err == nil {
		d = time.Duration(n) * time.Second
	} else {
		pd, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid interval %q", v)
		}
		d = pd
	}
	if d < time.Second {
		return 0, fmt.Errorf("interval %q must be at least 1s", v)
	}
	return d, nil
}
