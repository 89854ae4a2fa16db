package model

import (
	"sort"

	"github.com/equiptrack/maintsync/internal/dateutil"
)

// SortHistoryDesc orders rows newest first. Rows with unparseable dates go
// last, keeping their relative order.
func SortHistoryDesc(rows []HistoryRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		ti, erri := dateutil.ParseDdMmYy(rows[i].Date)
		tj, errj := dateutil.ParseDdMmYy(rows[j].Date)
		switch {
		case erri != nil:
			return false
		case errj != nil:
			return true
		default:
			return ti.After(tj)
		}
	})
}
