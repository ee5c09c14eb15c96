package rental

import "time"

const day = 24 * time.Hour

// Days returns the number of billable days in w.  Any started day is
// billed in full: ceil((End-Start) / 24h).  The span is measured as
// elapsed time between instants, never in calendar days, so a range
// crossing a DST change is not shortened or lengthened by it.
func Days(w Window) int64 {
	d := w.End.Sub(w.Start)
	if d <= 0 {
		return 0
	}
	n := int64(d / day)
	if d%day != 0 {
		n++
	}
	return n
}

// Price returns the total charge for renting quantity units at dailyRate
// for the whole window.  Amounts are integers in the smallest currency
// unit; no further rounding happens here.
func Price(dailyRate int64, w Window, quantity int) int64 {
	if quantity <= 0 || dailyRate <= 0 {
		return 0
	}
	return Days(w) * dailyRate * int64(quantity)
}
