package services

import (
	"time"

	"reserve/internal/models"
)

// Advisory risk scoring. The score informs an administrator glancing at
// the calendar; it never blocks or mutates a reservation.

type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

type RiskAnnotation struct {
	Score float64   `json:"score"`
	Level RiskLevel `json:"level"`
}

// AnnotateRisk scores an event from the same signals the legacy heuristic
// used: short lead time, long duration, weekends, and an undecided status
// each push the score up. Returns nil for terminal events, which carry no
// risk worth flagging.
func AnnotateRisk(ev CalendarEvent, now time.Time) *RiskAnnotation {
	if models.IsTerminal(ev.Status) {
		return nil
	}

	score := 0.1

	lead := ev.Start.Sub(now)
	switch {
	case lead < 24*time.Hour:
		score += 0.3
	case lead < 72*time.Hour:
		score += 0.15
	}

	if !ev.AllDay && ev.End.Sub(ev.Start) > 4*time.Hour {
		score += 0.2
	}

	switch ev.Start.Weekday() {
	case time.Saturday, time.Sunday:
		score += 0.2
	}

	if ev.Status == models.StatusPending {
		score += 0.1
	}

	if score > 1 {
		score = 1
	}

	level := RiskLow
	switch {
	case score >= 0.6:
		level = RiskHigh
	case score >= 0.35:
		level = RiskMedium
	}
	return &RiskAnnotation{Score: score, Level: level}
}
