// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package bizday computes the publication date a daily run should target.
package bizday

import "time"

// Previous returns the most recent weekday strictly before d. Monday,
// Saturday and Sunday all map to the preceding Friday. Holidays are not
// considered; a holiday with nothing published becomes a quiet day.
func Previous(d time.Time) time.Time {
	y, m, day := d.Date()
	p := time.Date(y, m, day, 0, 0, 0, 0, d.Location()).AddDate(0, 0, -1)
	for p.Weekday() == time.Saturday || p.Weekday() == time.Sunday {
		p = p.AddDate(0, 0, -1)
	}
	return p
}
