package tabular

import (
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/xuri/excelize/v2"
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"01/02/2006",
	"1/2/2006",
	"01/02/2006 15:04:05",
	"2006/01/02",
	"02-Jan-2006",
	"2-Jan-2006",
	"02 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"20060102",
}

// Excel serials beyond 9999-12-31 are not dates.
const maxExcelSerial = 2958465

// ParseDate parses a GL date cell. Unparseable input yields the zero
// civil.Date, which reports IsValid() == false.
func ParseDate(raw string) civil.Date {
	s := strings.TrimSpace(raw)
	if s == "" {
		return civil.Date{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(t)
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 && serial <= maxExcelSerial {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return civil.DateOf(t)
		}
	}
	return civil.Date{}
}
