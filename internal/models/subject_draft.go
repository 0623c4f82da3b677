package models

import "time"

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

// SubjectKind tells whether the profile belongs to the account holder or
// to a third party the user is adding.
type SubjectKind string

const (
	SubjectKindSelf  SubjectKind = "self"
	SubjectKindGuest SubjectKind = "guest"
)

type Meridiem string

const (
	MeridiemAM Meridiem = "AM"
	MeridiemPM Meridiem = "PM"
)

// BirthDate keeps year, month and day as independent fields because the
// wizard edits them one at a time; zero means "not set".
type BirthDate struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

// BirthTime is a 12-hour wall clock reading, or Unknown. Hour and Minute
// are kept when Unknown is set so toggling back restores them.
type BirthTime struct {
	Hour12   *int     `json:"hour12,omitempty"`
	Minute   *int     `json:"minute,omitempty"`
	Meridiem Meridiem `json:"meridiem,omitempty"`
	Unknown  bool     `json:"unknown"`
}

// Hour24 converts the 12-hour reading. ok is false when hour or minute is
// missing.
func (t BirthTime) Hour24() (hour, minute int, ok bool) {
	if t.Hour12 == nil || t.Minute == nil {
		return 0, 0, false
	}
	h := *t.Hour12 % 12
	if t.Meridiem == MeridiemPM {
		h += 12
	}
	return h, *t.Minute, true
}

type ResolvedPlace struct {
	Lat              float64 `json:"lat"`
	Lon              float64 `json:"lon"`
	FormattedAddress string  `json:"formattedAddress"`
}

type BirthLocation struct {
	QueryText string         `json:"queryText"`
	Resolved  *ResolvedPlace `json:"resolved,omitempty"`
}

// LocalImageRef points at an image file owned by this process. The path
// is never serialised.
type LocalImageRef struct {
	URI      string `json:"-"`
	MimeType string `json:"mimeType"`
}

type DraftSubjectProfile struct {
	Kind          SubjectKind    `json:"kind"`
	FirstName     string         `json:"firstName"`
	LastName      string         `json:"lastName"`
	Gender        Gender         `json:"gender,omitempty"`
	BirthDate     BirthDate      `json:"birthDate"`
	BirthTime     BirthTime      `json:"birthTime"`
	Location      BirthLocation  `json:"location"`
	LocalImageRef *LocalImageRef `json:"localImageRef,omitempty"`
}

// Clone returns a deep copy so a submission attempt can own its snapshot.
func (d DraftSubjectProfile) Clone() DraftSubjectProfile {
	out := d
	if d.BirthTime.Hour12 != nil {
		h := *d.BirthTime.Hour12
		out.BirthTime.Hour12 = &h
	}
	if d.BirthTime.Minute != nil {
		m := *d.BirthTime.Minute
		out.BirthTime.Minute = &m
	}
	if d.Location.Resolved != nil {
		r := *d.Location.Resolved
		out.Location.Resolved = &r
	}
	if d.LocalImageRef != nil {
		img := *d.LocalImageRef
		out.LocalImageRef = &img
	}
	return out
}

// BirthEpoch is the instant used for the timezone lookup: the birth date at
// the known wall-clock time, or 12:00 when the time is unknown, read as UTC.
func (d DraftSubjectProfile) BirthEpoch() int64 {
	hour, minute := 12, 0
	if !d.BirthTime.Unknown {
		if h, m, ok := d.BirthTime.Hour24(); ok {
			hour, minute = h, m
		}
	}
	return time.Date(
		d.BirthDate.Year, time.Month(d.BirthDate.Month), d.BirthDate.Day,
		hour, minute, 0, 0, time.UTC,
	).Unix()
}
