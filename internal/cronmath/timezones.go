package cronmath

import (
	"time"

	"github.com/loomhq/loom/internal/domain"
)

// TimezoneInfo describes one entry of the curated timezone catalog.
type TimezoneInfo struct {
	Name          string `json:"name"`
	Label         string `json:"label"`
	CurrentOffset string `json:"current_offset"`
}

// TimezoneRegion groups catalog entries for UI consumption.
type TimezoneRegion struct {
	Region    string         `json:"region"`
	Timezones []TimezoneInfo `json:"timezones"`
}

// The catalog is a curated allow-list, not the full IANA database. Schedules
// may only reference zones listed here.
var timezoneCatalog = []struct {
	region string
	zones  [][2]string // IANA name, display label
}{
	{"UTC", [][2]string{
		{"UTC", "Coordinated Universal Time"},
	}},
	{"Americas", [][2]string{
		{"America/New_York", "New York (Eastern)"},
		{"America/Chicago", "Chicago (Central)"},
		{"America/Denver", "Denver (Mountain)"},
		{"America/Los_Angeles", "Los Angeles (Pacific)"},
		{"America/Anchorage", "Anchorage"},
		{"America/Toronto", "Toronto"},
		{"America/Mexico_City", "Mexico City"},
		{"America/Bogota", "Bogota"},
		{"America/Sao_Paulo", "Sao Paulo"},
		{"America/Argentina/Buenos_Aires", "Buenos Aires"},
	}},
	{"Europe", [][2]string{
		{"Europe/London", "London"},
		{"Europe/Dublin", "Dublin"},
		{"Europe/Paris", "Paris"},
		{"Europe/Berlin", "Berlin"},
		{"Europe/Madrid", "Madrid"},
		{"Europe/Rome", "Rome"},
		{"Europe/Amsterdam", "Amsterdam"},
		{"Europe/Stockholm", "Stockholm"},
		{"Europe/Warsaw", "Warsaw"},
		{"Europe/Istanbul", "Istanbul"},
		{"Europe/Moscow", "Moscow"},
	}},
	{"Asia", [][2]string{
		{"Asia/Dubai", "Dubai"},
		{"Asia/Karachi", "Karachi"},
		{"Asia/Kolkata", "Kolkata"},
		{"Asia/Dhaka", "Dhaka"},
		{"Asia/Bangkok", "Bangkok"},
		{"Asia/Singapore", "Singapore"},
		{"Asia/Hong_Kong", "Hong Kong"},
		{"Asia/Shanghai", "Shanghai"},
		{"Asia/Tokyo", "Tokyo"},
		{"Asia/Seoul", "Seoul"},
	}},
	{"Oceania", [][2]string{
		{"Australia/Perth", "Perth"},
		{"Australia/Sydney", "Sydney"},
		{"Australia/Brisbane", "Brisbane"},
		{"Pacific/Auckland", "Auckland"},
	}},
	{"Africa", [][2]string{
		{"Africa/Cairo", "Cairo"},
		{"Africa/Lagos", "Lagos"},
		{"Africa/Nairobi", "Nairobi"},
		{"Africa/Johannesburg", "Johannesburg"},
	}},
}

var timezoneIndex = buildTimezoneIndex()

func buildTimezoneIndex() map[string]string {
	index := make(map[string]string)
	for _, region := range timezoneCatalog {
		for _, zone := range region.zones {
			index[zone[0]] = zone[1]
		}
	}
	// GMT is accepted as an alias for UTC.
	index["GMT"] = "Coordinated Universal Time"
	return index
}

// ListTimezones returns the catalog grouped by region, with current offsets
// computed for display.
func ListTimezones() []TimezoneRegion {
	now := time.Now()
	regions := make([]TimezoneRegion, 0, len(timezoneCatalog))
	for _, entry := range timezoneCatalog {
		region := TimezoneRegion{Region: entry.region}
		for _, zone := range entry.zones {
			region.Timezones = append(region.Timezones, TimezoneInfo{
				Name:          zone[0],
				Label:         zone[1],
				CurrentOffset: currentOffset(zone[0], now),
			})
		}
		regions = append(regions, region)
	}
	return regions
}

// ValidateTimezone checks tz against the curated catalog.
func ValidateTimezone(tz string) (TimezoneInfo, error) {
	label, ok := timezoneIndex[tz]
	if !ok {
		return TimezoneInfo{}, &domain.UnknownTimezoneError{Timezone: tz}
	}
	name := tz
	if tz == "GMT" {
		name = "UTC"
	}
	return TimezoneInfo{
		Name:          name,
		Label:         label,
		CurrentOffset: currentOffset(name, time.Now()),
	}, nil
}

func currentOffset(name string, now time.Time) string {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return ""
	}
	_, seconds := now.In(loc).Zone()
	offset := time.Duration(seconds) * time.Second
	return formatOffset(offset)
}
