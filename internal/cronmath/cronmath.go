// Package cronmath validates 5-field cron expressions, renders human-readable
// descriptions for the common shapes, and computes the instantaneous UTC
// offset of a schedule anchored in a named timezone.
package cronmath

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/loomhq/loom/internal/domain"
)

// parser accepts exactly the standard 5 fields: minute, hour, day-of-month,
// month, day-of-week.
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Validation is the result of a successful cron validation.
type Validation struct {
	Expression  string   `json:"expression"`
	Description string   `json:"description"`
	Fields      []string `json:"fields"`
}

// Validate checks that expr is a valid 5-field cron expression and produces a
// short description for it.
func Validate(expr string) (Validation, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return Validation{}, &domain.InvalidCronError{
			Expression: expr,
			Reason:     fmt.Sprintf("expected 5 fields, got %d", len(fields)),
		}
	}

	normalized := strings.Join(fields, " ")
	if _, err := parser.Parse(normalized); err != nil {
		return Validation{}, &domain.InvalidCronError{Expression: expr, Reason: err.Error()}
	}

	return Validation{
		Expression:  normalized,
		Description: Describe(fields),
		Fields:      fields,
	}, nil
}

// NextFire computes the next fire instant of expr after from, interpreting
// the wall-clock fields in from's location.
func NextFire(expr string, from time.Time) (time.Time, error) {
	schedule, err := parser.Parse(expr)
	if err != nil {
		return time.Time{}, &domain.InvalidCronError{Expression: expr, Reason: err.Error()}
	}
	return schedule.Next(from), nil
}

// Describe pattern-matches the common cron shapes into a short human
// description and falls back to echoing the raw expression for anything
// irregular.
func Describe(fields []string) string {
	if len(fields) != 5 {
		return strings.Join(fields, " ")
	}
	minute, hour, dom, month, dow := fields[0], fields[1], fields[2], fields[3], fields[4]

	m, minuteOK := atoiField(minute)
	h, hourOK := atoiField(hour)

	switch {
	case minuteOK && hourOK && dom == "*" && month == "*" && dow == "*":
		return fmt.Sprintf("Daily at %02d:%02d", h, m)
	case minuteOK && hourOK && dom == "*" && month == "*":
		if day, ok := weekdayName(dow); ok {
			return fmt.Sprintf("Weekly on %s at %02d:%02d", day, h, m)
		}
	case minuteOK && hourOK && month == "*" && dow == "*":
		if d, ok := atoiField(dom); ok {
			return fmt.Sprintf("Monthly on day %d at %02d:%02d", d, h, m)
		}
	case minuteOK && hour == "*" && dom == "*" && month == "*" && dow == "*":
		return fmt.Sprintf("Hourly at minute %d", m)
	}

	if step, ok := strings.CutPrefix(minute, "*/"); ok && hour == "*" && dom == "*" && month == "*" && dow == "*" {
		if n, err := strconv.Atoi(step); err == nil {
			return fmt.Sprintf("Every %d minutes", n)
		}
	}
	if step, ok := strings.CutPrefix(hour, "*/"); ok && minuteOK && dom == "*" && month == "*" && dow == "*" {
		if n, err := strconv.Atoi(step); err == nil {
			return fmt.Sprintf("Every %d hours at minute %d", n, m)
		}
	}

	return strings.Join(fields, " ")
}

// Conversion reports how a timezone-anchored schedule relates to UTC. The
// wall-clock cron fields are intentionally left unchanged; the external
// scheduler's crontab rows carry their own timezone column, so this exists
// for validation and operator display.
type Conversion struct {
	UTCExpression       string `json:"utc_expression"`
	OriginalDescription string `json:"original_description"`
	UTCDescription      string `json:"utc_description"`
	OffsetLabel         string `json:"offset_label"`
}

// ConvertToUTC validates expr against tz and derives the zone's offset at the
// schedule's next fire time, so DST at the fire instant is accounted for
// rather than the offset at "now".
func ConvertToUTC(expr string, tz string) (Conversion, error) {
	validation, err := Validate(expr)
	if err != nil {
		return Conversion{}, err
	}

	if isUTCEquivalent(tz) {
		return Conversion{
			UTCExpression:       validation.Expression,
			OriginalDescription: validation.Description,
			UTCDescription:      validation.Description,
			OffsetLabel:         "UTC+00:00",
		}, nil
	}

	info, err := ValidateTimezone(tz)
	if err != nil {
		return Conversion{}, err
	}

	loc, err := time.LoadLocation(info.Name)
	if err != nil {
		return Conversion{}, &domain.UnknownTimezoneError{Timezone: tz}
	}

	nextInZone, err := NextFire(validation.Expression, time.Now().In(loc))
	if err != nil {
		return Conversion{}, err
	}

	// The zone's offset is taken at the next fire instant, not at "now", so a
	// DST transition between the two is reflected.
	_, offsetSeconds := nextInZone.Zone()
	label := formatOffset(time.Duration(offsetSeconds) * time.Second)

	return Conversion{
		UTCExpression:       validation.Expression,
		OriginalDescription: fmt.Sprintf("%s (%s)", validation.Description, info.Name),
		UTCDescription:      fmt.Sprintf("%s (%s)", validation.Description, label),
		OffsetLabel:         label,
	}, nil
}

func isUTCEquivalent(tz string) bool {
	switch strings.ToUpper(strings.TrimSpace(tz)) {
	case "", "UTC", "GMT", "ETC/UTC", "ETC/GMT":
		return true
	}
	return false
}

func formatOffset(offset time.Duration) string {
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	hours := int(offset / time.Hour)
	minutes := int(offset % time.Hour / time.Minute)
	return fmt.Sprintf("UTC%s%02d:%02d", sign, hours, minutes)
}

func atoiField(field string) (int, bool) {
	n, err := strconv.Atoi(field)
	if err != nil {
		return 0, false
	}
	return n, true
}

var weekdayNames = map[string]string{
	"0": "Sunday",
	"1": "Monday",
	"2": "Tuesday",
	"3": "Wednesday",
	"4": "Thursday",
	"5": "Friday",
	"6": "Saturday",
}

func weekdayName(field string) (string, bool) {
	name, ok := weekdayNames[field]
	return name, ok
}
