package routes

const (
	// Health
	Health = "/health"

	// Wizard sessions
	OnboardingSessions    = "/api/v1/onboarding/sessions"
	OnboardingSession     = "/api/v1/onboarding/sessions/{sessionId}"
	OnboardingFields      = "/api/v1/onboarding/sessions/{sessionId}/fields"
	OnboardingPlaces      = "/api/v1/onboarding/sessions/{sessionId}/places"
	OnboardingPlaceSelect = "/api/v1/onboarding/sessions/{sessionId}/places/select"
	OnboardingPhoto       = "/api/v1/onboarding/sessions/{sessionId}/photo"
	OnboardingNext        = "/api/v1/onboarding/sessions/{sessionId}/next"
	OnboardingBack        = "/api/v1/onboarding/sessions/{sessionId}/back"
	OnboardingJump        = "/api/v1/onboarding/sessions/{sessionId}/jump"
	OnboardingUserState   = "/api/v1/onboarding/state"

	// Subjects created through onboarding
	SubjectPhoto = "/api/v1/subjects/{subjectId}/photo"
)
