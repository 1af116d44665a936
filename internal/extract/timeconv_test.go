package extract

import (
	"testing"
	"time"
)

func TestDeviceTime(t *testing.T) {
	t.Run("zero is the device epoch", func(t *testing.T) {
		got := DeviceTime(int64(0))
		if got == nil {
			t.Fatal("DeviceTime(0) = nil, want the epoch")
		}
		want := time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)
		if !got.Equal(want) {
			t.Errorf("DeviceTime(0) = %v, want %v", got, want)
		}
	})

	t.Run("seconds", func(t *testing.T) {
		got := DeviceTime(int64(86_400))
		want := time.Date(2001, 1, 2, 0, 0, 0, 0, time.UTC)
		if got == nil || !got.Equal(want) {
			t.Errorf("DeviceTime(86400) = %v, want %v", got, want)
		}
	})

	t.Run("nanoseconds above threshold", func(t *testing.T) {
		// 2e10 exceeds the magnitude threshold, so it is read as
		// nanoseconds: 20 seconds past the epoch.
		got := DeviceTime(int64(20_000_000_000))
		want := time.Date(2001, 1, 1, 0, 0, 20, 0, time.UTC)
		if got == nil || !got.Equal(want) {
			t.Errorf("DeviceTime(2e10) = %v, want %v", got, want)
		}
	})

	t.Run("numeric text", func(t *testing.T) {
		got := DeviceTime("86400")
		want := time.Date(2001, 1, 2, 0, 0, 0, 0, time.UTC)
		if got == nil || !got.Equal(want) {
			t.Errorf("DeviceTime(\"86400\") = %v, want %v", got, want)
		}
	})

	t.Run("absent or garbage", func(t *testing.T) {
		if got := DeviceTime(nil); got != nil {
			t.Errorf("DeviceTime(nil) = %v, want nil", got)
		}
		if got := DeviceTime("soon"); got != nil {
			t.Errorf("DeviceTime(garbage) = %v, want nil", got)
		}
	})
}

func TestUnixTime(t *testing.T) {
	t.Run("seconds", func(t *testing.T) {
		got := UnixTime(int64(1_700_000_000))
		want := time.Unix(1_700_000_000, 0).UTC()
		if got == nil || !got.Equal(want) {
			t.Errorf("UnixTime(1.7e9) = %v, want %v", got, want)
		}
	})

	t.Run("milliseconds above threshold", func(t *testing.T) {
		got := UnixTime(int64(1_700_000_000_000))
		want := time.Unix(1_700_000_000, 0).UTC()
		if got == nil || !got.Equal(want) {
			t.Errorf("UnixTime(1.7e12) = %v, want %v", got, want)
		}
	})

	t.Run("absent", func(t *testing.T) {
		if got := UnixTime(nil); got != nil {
			t.Errorf("UnixTime(nil) = %v, want nil", got)
		}
	})
}
