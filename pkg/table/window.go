package table

// Window keeps the most recent days rows of a date-sorted sequence.
//
// days <= 0 returns rows unchanged. Missing dates are not backfilled, so on
// sparse data this is the last N rows rather than the last N calendar days.
func Window(rows []Row, days int) []Row {
	if days <= 0 || len(rows) <= days {
		return rows
	}
	return rows[len(rows)-days:]
}
