package snapshot

import (
	"strings"
	"time"

	echoerrors "github.com/raoulx24/wandering-echo/internal/errors"
)

// Separator joins a subvolume name and a timestamp in snapshot names.
const Separator = "___"

// TimestampLayout is day-month-year, hour-minute-second and numeric zone.
const TimestampLayout = "02-01-2006_15:04:05Z0700"

func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(TimestampLayout, s)
	if err != nil {
		return time.Time{}, echoerrors.Mark(err, echoerrors.DataInconsistent)
	}
	return t, nil
}

// FormatName returns <subvolume><Separator><timestamp>.
func FormatName(subvolume string, at time.Time) string {
	return subvolume + Separator + FormatTimestamp(at)
}

// ParseName splits a snapshot name at the last separator.
func ParseName(name string) (string, time.Time, error) {
	i := strings.LastIndex(name, Separator)
	if i <= 0 {
		return "", time.Time{}, echoerrors.Newf(echoerrors.DataInconsistent, "%q is not a snapshot name", name)
	}
	at, err := ParseTimestamp(name[i+len(Separator):])
	if err != nil {
		return "", time.Time{}, echoerrors.Newf(echoerrors.DataInconsistent, "%q has a malformed timestamp", name)
	}
	return name[:i], at, nil
}
