// Package availability decides whether a book's copies can satisfy a wished
// loan window and which copy to hand out.
//
// All comparisons are done on whole calendar days in UTC. Two windows overlap
// unless one ends before the other starts.
package availability

import (
	"errors"
	"sort"
	"time"
)

var ErrNoUsableCopy = errors.New("no usable copy")

// Range is a loan window, both ends inclusive.
type Range struct {
	Start time.Time
	End   time.Time
}

// Candidate is a copy together with the windows of its open reservations.
type Candidate struct {
	Code         string
	Reservations []Range
}

// Day truncates t to the start of its calendar day in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}

func (r Range) Overlaps(other Range) bool {
	return !(Day(r.End).Before(Day(other.Start)) || Day(r.Start).After(Day(other.End)))
}

// Valid reports whether the window does not end before it starts.
func (r Range) Valid() bool {
	return !Day(r.End).Before(Day(r.Start))
}

// Usable reports whether c can take a reservation for wished. Without a
// wished window only copies with no open reservation qualify.
func Usable(c Candidate, wished *Range) bool {
	if len(c.Reservations) == 0 {
		return true
	}
	if wished == nil {
		return false
	}
	for _, existing := range c.Reservations {
		if existing.Overlaps(*wished) {
			return false
		}
	}
	return true
}

func IsAvailable(copies []Candidate, wished *Range) bool {
	for _, c := range copies {
		if Usable(c, wished) {
			return true
		}
	}
	return false
}

// PickCopy returns the usable copy with the lowest code.
func PickCopy(copies []Candidate, wished *Range) (Candidate, error) {
	usable := make([]Candidate, 0, len(copies))
	for _, c := range copies {
		if Usable(c, wished) {
			usable = append(usable, c)
		}
	}
	if len(usable) == 0 {
		return Candidate{}, ErrNoUsableCopy
	}
	sort.Slice(usable, func(i, j int) bool {
		return usable[i].Code < usable[j].Code
	})
	return usable[0], nil
}

// CountFree counts the copies without any open reservation.
func CountFree(copies []Candidate) int {
	count := 0
	for _, c := range copies {
		if Usable(c, nil) {
			count++
		}
	}
	return count
}
