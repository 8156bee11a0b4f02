package cli

import (
	"fmt"
	"time"
)

// FormatDuration renders d for humans: "850ms", "12.5s" or "3m4.0s".
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	m := d / time.Minute
	return fmt.Sprintf("%dm%.1fs", int(m), (d - m*time.Minute).Seconds())
}

var byteUnits = []string{"KB", "MB", "GB"}

// FormatBytes renders a byte count with binary units: "512 B", "1.50 KB".
func FormatBytes(n int64) string {
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}
	v := float64(n) / 1024
	unit := 0
	for v >= 1024 && unit < len(byteUnits)-1 {
		v /= 1024
		unit++
	}
	return fmt.Sprintf("%.2f %s", v, byteUnits[unit])
}
