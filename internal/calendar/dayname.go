package calendar

import (
	"strconv"
	"time"
)

var weekdayNames = map[time.Weekday]string{
	time.Monday:    "Senin",
	time.Tuesday:   "Selasa",
	time.Wednesday: "Rabu",
	time.Thursday:  "Kamis",
	time.Friday:    "Jumat",
	time.Saturday:  "Sabtu",
	time.Sunday:    "Minggu",
}

var monthNames = [...]string{
	"Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

// DayName returns the Indonesian weekday name.
func DayName(wd time.Weekday) string {
	return weekdayNames[wd]
}

// MonthName returns the Indonesian month name.
func MonthName(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return monthNames[m-1]
}

// MonthSheetName is the worksheet title used for a month, e.g. "Januari 2026".
func MonthSheetName(year int, m time.Month) string {
	return MonthName(m) + " " + strconv.Itoa(year)
}
