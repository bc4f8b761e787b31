// Formats byte amounts, transfer speeds and remaining-time estimates into
// human readable form.
package byteshuman

import (
	"fmt"
	"time"
)

const (
	B   = 1
	kiB = 1024 * B
	MiB = 1024 * kiB
	GiB = 1024 * MiB
	TiB = 1024 * GiB
	PiB = 1024 * TiB
)

func Humanize(num uint64) string {
	switch {
	case num >= PiB:
		return fmt.Sprintf("%.02f PiB", float64(num)/PiB)
	case num >= TiB:
		return fmt.Sprintf("%.02f TiB", float64(num)/TiB)
	case num >= GiB:
		return fmt.Sprintf("%.02f GiB", float64(num)/GiB)
	case num >= MiB:
		return fmt.Sprintf("%.02f MiB", float64(num)/MiB)
	case num >= kiB:
		return fmt.Sprintf("%.02f kiB", float64(num)/kiB)
	default:
		return fmt.Sprintf("%d B", num)
	}
}

// for md sync speeds and the like
func Speed(bytesPerSecond uint64) string {
	return Humanize(bytesPerSecond) + "/s"
}

// ETA renders a remaining-time estimate the way mdstat watchers expect it:
// "1h32m", "4m10s", "25s". Non-positive => empty.
func ETA(remaining time.Duration) string {
	if remaining <= 0 {
		return ""
	}

	remaining = remaining.Round(time.Second)

	hours := int(remaining / time.Hour)
	minutes := int(remaining/time.Minute) % 60
	seconds := int(remaining/time.Second) % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh%dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
