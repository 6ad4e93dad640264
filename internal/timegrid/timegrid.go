// Package timegrid holds the pure arithmetic of the 15-minute scheduling
// grid: conversions between wall-clock times and slot indices, duration
// parsing of free-form text, and calendar-date helpers.
package timegrid

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// SlotMinutes is the width of one grid slot.
	SlotMinutes = 15
	// SlotsPerHour is the number of grid slots per hour.
	SlotsPerHour = 4
	// MinDurationMinutes is the shortest allowed timeblock.
	MinDurationMinutes = 15
	// MaxDurationMinutes caps a timeblock at a full day.
	MaxDurationMinutes = 24 * 60

	dateLayout = "2006-01-02"
)

var (
	compoundPattern = regexp.MustCompile(`(?i)^(\d+)\s*h\s*(\d+)\s*m$`)
	simplePattern   = regexp.MustCompile(`(?i)^(\d+\.?\d*)\s*(h|hr|hrs|hour|hours|m|min|mins|minute|minutes)$`)
)

// ParsedDuration is the result of parsing free-form duration text.
type ParsedDuration struct {
	Minutes int
	Valid   bool
	Err     string
}

// ParseDuration turns natural duration text into minutes. It accepts a
// compound form ("1h 30m"), a single-unit form ("90 min", "1.5 hours",
// "45m"), or a bare number interpreted as minutes. The compound form is
// tried first. Anything under 15 minutes or over 24 hours is invalid.
func ParseDuration(input string) ParsedDuration {
	trimmed := strings.ToLower(strings.TrimSpace(input))
	if trimmed == "" {
		return ParsedDuration{Err: "Duration is required"}
	}

	if m := compoundPattern.FindStringSubmatch(trimmed); m != nil {
		hours, _ := strconv.Atoi(m[1])
		mins, _ := strconv.Atoi(m[2])
		return boundDuration(hours*60 + mins)
	}

	if m := simplePattern.FindStringSubmatch(trimmed); m != nil {
		value, _ := strconv.ParseFloat(m[1], 64)
		var minutes int
		if strings.HasPrefix(m[2], "h") {
			minutes = int(math.Round(value * 60))
		} else {
			minutes = int(math.Round(value))
		}
		return boundDuration(minutes)
	}

	if value, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return boundDuration(int(math.Round(value)))
	}

	return ParsedDuration{Err: `Invalid format. Try "90 min", "1.5 hours", or "1h 30m"`}
}

func boundDuration(minutes int) ParsedDuration {
	if minutes < MinDurationMinutes {
		return ParsedDuration{Err: "Minimum duration is 15 minutes"}
	}
	if minutes > MaxDurationMinutes {
		return ParsedDuration{Err: "Maximum duration is 24 hours"}
	}
	return ParsedDuration{Minutes: minutes, Valid: true}
}

// FormatDuration renders minutes as "45m", "2h" or "1h 30m".
func FormatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	hours := minutes / 60
	rem := minutes % 60
	if rem == 0 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dh %dm", hours, rem)
}

// SplitTime parses "HH:MM" (seconds tolerated and ignored) into its parts.
func SplitTime(t string) (hour, minute int, err error) {
	parts := strings.Split(t, ":")
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", t)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", t)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", t)
	}
	return hour, minute, nil
}

// TimeToSlotIndex maps an "HH:MM" time onto a slot index relative to
// startHour. Unaligned minutes floor to the earlier slot.
func TimeToSlotIndex(t string, startHour int) int {
	hour, minute, err := SplitTime(t)
	if err != nil {
		return 0
	}
	return (hour-startHour)*SlotsPerHour + minute/SlotMinutes
}

// SlotIndexToTime is the inverse of TimeToSlotIndex for aligned times.
func SlotIndexToTime(index, startHour int) string {
	total := index * SlotMinutes
	hours := startHour + total/60
	minutes := total % 60
	if total < 0 {
		// Negative indices land before startHour; normalize the floor
		// division so -1 maps to one slot earlier, not later.
		hours = startHour + (total-59)/60
		minutes = ((total % 60) + 60) % 60
	}
	return fmt.Sprintf("%02d:%02d", hours, minutes)
}

// AddMinutesToTime returns startTime + minutes as "HH:MM". Hours wrap at
// midnight so a late block ending on the day boundary reads "00:00".
func AddMinutesToTime(startTime string, minutes int) (string, error) {
	hour, minute, err := SplitTime(startTime)
	if err != nil {
		return "", err
	}
	total := hour*60 + minute + minutes
	return fmt.Sprintf("%02d:%02d", (total/60)%24, total%60), nil
}

// DoTimesOverlap reports whether the half-open ranges [start1,end1) and
// [start2,end2) intersect. "HH:MM" strings compare correctly as text.
func DoTimesOverlap(start1, end1, start2, end2 string) bool {
	return start1 < end2 && start2 < end1
}

// SnapToGrid rounds minutes to the nearest slot boundary.
func SnapToGrid(minutes int) int {
	return int(math.Round(float64(minutes)/SlotMinutes)) * SlotMinutes
}

// TimeSlot is one renderable row of the day grid.
type TimeSlot struct {
	Hour   int
	Minute int
	Label  string
}

// GenerateTimeSlots lists every quarter-hour slot from startHour through
// endHour inclusive.
func GenerateTimeSlots(startHour, endHour int) []TimeSlot {
	var slots []TimeSlot
	for hour := startHour; hour <= endHour; hour++ {
		for quarter := 0; quarter < SlotsPerHour; quarter++ {
			minute := quarter * SlotMinutes
			slots = append(slots, TimeSlot{
				Hour:   hour,
				Minute: minute,
				Label:  fmt.Sprintf("%02d:%02d", hour, minute),
			})
		}
	}
	return slots
}

// FormatTime renders "HH:MM" in 12-hour display form ("9 AM", "2:30 PM").
func FormatTime(t string) string {
	hour, minute, err := SplitTime(t)
	if err != nil {
		return t
	}
	period := "AM"
	if hour >= 12 {
		period = "PM"
	}
	display := hour % 12
	if display == 0 {
		display = 12
	}
	if minute == 0 {
		return fmt.Sprintf("%d %s", display, period)
	}
	return fmt.Sprintf("%d:%02d %s", display, minute, period)
}

// FormatDateISO renders a date as YYYY-MM-DD.
func FormatDateISO(t time.Time) string {
	return t.Format(dateLayout)
}

// TodayISO is today's date in YYYY-MM-DD.
func TodayISO() string {
	return FormatDateISO(time.Now())
}

// ParseDateISO parses a YYYY-MM-DD date string.
func ParseDateISO(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

// AddDays shifts a YYYY-MM-DD date string by days.
func AddDays(dateStr string, days int) (string, error) {
	d, err := ParseDateISO(dateStr)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", dateStr, err)
	}
	return FormatDateISO(d.AddDate(0, 0, days)), nil
}

// IsToday reports whether a YYYY-MM-DD string is today's date.
func IsToday(dateStr string) bool {
	return dateStr == TodayISO()
}

// IsAligned reports whether an "HH:MM" time sits on a slot boundary.
func IsAligned(t string) bool {
	_, minute, err := SplitTime(t)
	return err == nil && minute%SlotMinutes == 0
}
