package draft

import (
	"strings"

	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/constants"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/models"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/utils"
)

// Store holds one in-progress DraftSubjectProfile. All writes go through
// its setters so the resolved location is only ever set or cleared whole.
// Store is not safe for concurrent use; the owning session serialises it.
type Store struct {
	d models.DraftSubjectProfile
}

func NewStore(kind models.SubjectKind) *Store {
	if kind != models.SubjectKindGuest {
		kind = models.SubjectKindSelf
	}
	return &Store{d: models.DraftSubjectProfile{
		Kind:      kind,
		BirthTime: models.BirthTime{Meridiem: models.MeridiemAM},
	}}
}

// Snapshot returns a deep copy of the current draft.
func (s *Store) Snapshot() models.DraftSubjectProfile {
	return s.d.Clone()
}

func (s *Store) SetSubjectKind(k models.SubjectKind) {
	if k != models.SubjectKindGuest {
		k = models.SubjectKindSelf
	}
	s.d.Kind = k
}

func (s *Store) SetFirstName(v string) { s.d.FirstName = utils.CleanText(v) }
func (s *Store) SetLastName(v string)  { s.d.LastName = utils.CleanText(v) }

func (s *Store) SetGender(g models.Gender) error {
	if !g.Valid() {
		return &ValidationError{Step: constants.StepIdentity, Fields: []FieldError{{Field: "gender", Reason: "unknown value"}}}
	}
	s.d.Gender = g
	return nil
}

func (s *Store) SetBirthYear(y int)  { s.d.BirthDate.Year = y }
func (s *Store) SetBirthMonth(m int) { s.d.BirthDate.Month = m }
func (s *Store) SetBirthDay(d int)   { s.d.BirthDate.Day = d }

func (s *Store) SetBirthDate(year, month, day int) {
	s.d.BirthDate = models.BirthDate{Year: year, Month: month, Day: day}
}

func (s *Store) SetBirthHour(h12 int) { s.d.BirthTime.Hour12 = utils.Ptr(h12) }
func (s *Store) SetBirthMinute(m int) { s.d.BirthTime.Minute = utils.Ptr(m) }

func (s *Store) SetMeridiem(m models.Meridiem) error {
	if m != models.MeridiemAM && m != models.MeridiemPM {
		return &ValidationError{Step: constants.StepBirthDateTime, Fields: []FieldError{{Field: "birthTime.meridiem", Reason: "must be AM or PM"}}}
	}
	s.d.BirthTime.Meridiem = m
	return nil
}

func (s *Store) SetBirthTime(h12, minute int, m models.Meridiem) error {
	if err := s.SetMeridiem(m); err != nil {
		return err
	}
	s.SetBirthHour(h12)
	s.SetBirthMinute(minute)
	return nil
}

// SetUnknownTime toggles the unknown-time sentinel. Hour and minute are
// left in place and ignored while it is set.
func (s *Store) SetUnknownTime(unknown bool) { s.d.BirthTime.Unknown = unknown }

// SetLocationQuery records typed search text. Changed text drops any
// earlier resolution, which no longer describes what was typed.
func (s *Store) SetLocationQuery(q string) {
	q = utils.CleanText(q)
	if q != s.d.Location.QueryText {
		s.d.Location.Resolved = nil
	}
	s.d.Location.QueryText = q
}

// ResolveLocation sets coordinates and address together and echoes the
// chosen suggestion's description back into the query.
func (s *Store) ResolveLocation(description string, p models.ResolvedPlace) {
	s.d.Location = models.BirthLocation{
		QueryText: utils.CleanText(description),
		Resolved:  &p,
	}
}

func (s *Store) ClearResolvedLocation() { s.d.Location.Resolved = nil }

// SetLocalImage replaces the attached image and returns the one it
// replaced, if any, so the caller can release it.
func (s *Store) SetLocalImage(ref models.LocalImageRef) *models.LocalImageRef {
	prev := s.d.LocalImageRef
	ref.MimeType = constants.NormalizeMimeType(strings.ToLower(ref.MimeType))
	s.d.LocalImageRef = &ref
	return prev
}

func (s *Store) ClearLocalImage() *models.LocalImageRef {
	prev := s.d.LocalImageRef
	s.d.LocalImageRef = nil
	return prev
}

// Patch is a batch of field edits; nil fields are left untouched.
type Patch struct {
	Kind          *string
	FirstName     *string
	LastName      *string
	Gender        *string
	BirthYear     *int
	BirthMonth    *int
	BirthDay      *int
	Hour12        *int
	Minute        *int
	Meridiem      *string
	UnknownTime   *bool
	LocationQuery *string
}

// Apply validates the enum-valued fields of p first and then applies the
// whole patch, so a rejected patch leaves the draft unchanged.
func (s *Store) Apply(p Patch) error {
	if p.Kind != nil {
		if k := models.SubjectKind(*p.Kind); k != models.SubjectKindSelf && k != models.SubjectKindGuest {
			return &ValidationError{Step: constants.StepIdentity, Fields: []FieldError{{Field: "kind", Reason: "must be self or guest"}}}
		}
	}
	if p.Gender != nil && !models.Gender(*p.Gender).Valid() {
		return &ValidationError{Step: constants.StepIdentity, Fields: []FieldError{{Field: "gender", Reason: "unknown value"}}}
	}
	if p.Meridiem != nil {
		if m := models.Meridiem(strings.ToUpper(*p.Meridiem)); m != models.MeridiemAM && m != models.MeridiemPM {
			return &ValidationError{Step: constants.StepBirthDateTime, Fields: []FieldError{{Field: "birthTime.meridiem", Reason: "must be AM or PM"}}}
		}
	}

	if p.Kind != nil {
		s.SetSubjectKind(models.SubjectKind(*p.Kind))
	}
	if p.FirstName != nil {
		s.SetFirstName(*p.FirstName)
	}
	if p.LastName != nil {
		s.SetLastName(*p.LastName)
	}
	if p.Gender != nil {
		_ = s.SetGender(models.Gender(*p.Gender))
	}
	if p.BirthYear != nil {
		s.SetBirthYear(*p.BirthYear)
	}
	if p.BirthMonth != nil {
		s.SetBirthMonth(*p.BirthMonth)
	}
	if p.BirthDay != nil {
		s.SetBirthDay(*p.BirthDay)
	}
	if p.Hour12 != nil {
		s.SetBirthHour(*p.Hour12)
	}
	if p.Minute != nil {
		s.SetBirthMinute(*p.Minute)
	}
	if p.Meridiem != nil {
		_ = s.SetMeridiem(models.Meridiem(strings.ToUpper(*p.Meridiem)))
	}
	if p.UnknownTime != nil {
		s.SetUnknownTime(*p.UnknownTime)
	}
	if p.LocationQuery != nil {
		s.SetLocationQuery(*p.LocationQuery)
	}
	return nil
}
