package page

import (
	"fmt"
	"time"
)

var (
	monthsShort = [...]string{"Jan", "Feb", "Mar", "Apr", "Mei", "Jun", "Jul", "Agu", "Sep", "Okt", "Nov", "Des"}
	monthsLong  = [...]string{"Januari", "Februari", "Maret", "April", "Mei", "Juni", "Juli", "Agustus", "September", "Oktober", "November", "Desember"}
	weekdays    = [...]string{"Minggu", "Senin", "Selasa", "Rabu", "Kamis", "Jumat", "Sabtu"}
)

// FormatMedium : date moyenne + heure courte, locale id-ID ("16 Okt 2026, 14.05").
func FormatMedium(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	t = inLocation(t, loc)
	return fmt.Sprintf("%d %s %d, %s", t.Day(), monthsShort[t.Month()-1], t.Year(), shortTime(t))
}

// FormatFull : date complète + heure courte, locale id-ID ("Jumat, 16 Oktober 2026 pukul 14.05").
func FormatFull(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	t = inLocation(t, loc)
	return fmt.Sprintf("%s, %02d %s %d pukul %s", weekdays[t.Weekday()], t.Day(), monthsLong[t.Month()-1], t.Year(), shortTime(t))
}

func shortTime(t time.Time) string {
	return fmt.Sprintf("%02d.%02d", t.Hour(), t.Minute())
}

func inLocation(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		return t
	}
	return t.In(loc)
}
