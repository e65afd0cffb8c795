package engine

// ShiftFollowing moves every booking that starts strictly after from by delta
// days, keeping each timeline's durations. Bookings without a timeline only
// have their start date moved. It returns the moved bookings in start order.
func ShiftFollowing(s *FurnaceSchedule, from Date, delta int, excludeID string) []*Booking {
	if delta == 0 {
		return nil
	}
	var moved []*Booking
	for _, b := range s.Sorted() {
		if b.ID == excludeID || !b.Start().After(from) {
			continue
		}
		if b.Timeline != nil {
			b.SetTimeline(b.Timeline.Shift(delta))
		} else {
			b.StartDate = b.StartDate.AddDays(delta)
		}
		moved = append(moved, b)
	}
	return moved
}
