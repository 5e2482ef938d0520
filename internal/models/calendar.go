package models

import (
	"fmt"
	"time"
)

// CalendarDay is one cell of the month grid. Filler cells have an empty Date.
type CalendarDay struct {
	Date       string `json:"date,omitempty"` // YYYY-MM-DD
	Day        int    `json:"day,omitempty"`
	Selectable bool   `json:"selectable"`
}

// CalendarMonth is the month grid the date step renders. Rows are Monday-first
// weeks. A cell is selectable only when its date is in the availability set
// and not before today.
type CalendarMonth struct {
	Year  int             `json:"year"`
	Month int             `json:"month"` // 1..12
	Weeks [][]CalendarDay `json:"weeks"`
}

// BuildCalendarMonth builds the grid for a given month. availableDates keys
// are YYYY-MM-DD strings; today is the client-side floor in the same format.
func BuildCalendarMonth(year, month int, availableDates map[string]bool, today string) CalendarMonth {
	firstDay := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	weekdayOffset := int(firstDay.Weekday())
	if weekdayOffset == 0 {
		weekdayOffset = 7 // make Monday-first grid
	}
	daysInMonth := daysIn(time.Month(month), year)

	weeks := make([][]CalendarDay, 0, 6)
	day := 1
	for day <= daysInMonth {
		row := make([]CalendarDay, 0, 7)
		for col := 1; col <= 7; col++ {
			if len(weeks) == 0 && col < weekdayOffset {
				row = append(row, CalendarDay{})
				continue
			}
			if day > daysInMonth {
				row = append(row, CalendarDay{})
				continue
			}
			dateStr := fmt.Sprintf("%04d-%02d-%02d", year, month, day)
			selectable := availableDates[dateStr] && dateStr >= today
			row = append(row, CalendarDay{Date: dateStr, Day: day, Selectable: selectable})
			day++
		}
		weeks = append(weeks, row)
	}

	return CalendarMonth{Year: year, Month: month, Weeks: weeks}
}

// MonthBounds returns the first and last civil dates of a month.
func MonthBounds(year, month int) (from, to string) {
	from = fmt.Sprintf("%04d-%02d-01", year, month)
	to = fmt.Sprintf("%04d-%02d-%02d", year, month, daysIn(time.Month(month), year))
	return from, to
}

// ShiftMonth moves the cursor by delta months.
func ShiftMonth(year, month, delta int) (int, int) {
	t := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).AddDate(0, delta, 0)
	return t.Year(), int(t.Month())
}

func daysIn(m time.Month, year int) int {
	switch m {
	case time.February:
		if (year%4 == 0 && year%100 != 0) || year%400 == 0 {
			return 29
		}
		return 28
	case time.April, time.June, time.September, time.November:
		return 30
	default:
		return 31
	}
}
