package extract

import "time"

// Source databases encode times against two different epochs and in
// three different units, with no unit tag. Values above this magnitude
// cannot be seconds for any plausible date, so they are reinterpreted as
// the finer unit. The threshold and divisors must not change: they are
// matched to how the source apps have historically written timestamps.
const magnitudeThreshold = 10_000_000_000

// deviceEpoch is the reference instant of the device's native timestamp
// encoding (2001-01-01 UTC), distinct from the Unix epoch.
var deviceEpoch = time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)

// DeviceTime converts a device-epoch timestamp to absolute time. Inputs
// above the magnitude threshold are nanoseconds and are divided down to
// seconds first. Returns nil for absent or unparseable input.
func DeviceTime(v any) *time.Time {
	f, ok := asFloat64(v)
	if !ok {
		return nil
	}
	if f > magnitudeThreshold {
		f /= 1e9
	}
	t := deviceEpoch.Add(time.Duration(f * float64(time.Second)))
	return &t
}

// UnixTime converts a Unix timestamp to absolute time. Inputs above the
// magnitude threshold are milliseconds and are divided by 1000 first.
// Returns nil for absent or unparseable input.
func UnixTime(v any) *time.Time {
	f, ok := asFloat64(v)
	if !ok {
		return nil
	}
	if f > magnitudeThreshold {
		f /= 1000
	}
	sec := int64(f)
	nsec := int64((f - float64(sec)) * float64(time.Second))
	t := time.Unix(sec, nsec).UTC()
	return &t
}
