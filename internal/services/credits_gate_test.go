package services

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/constants"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/testhelpers"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/utils"
)

type recordingPrompter struct {
	prompts []GateDecision
}

func (p *recordingPrompter) PromptUpgrade(_ context.Context, d GateDecision) {
	p.prompts = append(p.prompts, d)
}

const usagePath = "/api/v1/usage/" + constants.ActionCreateOwnProfile

func TestGateDisabledSkipsQuotaCall(t *testing.T) {
	h := newHarness(t)
	gate := NewCreditsGate(h.client, false, nil)

	d, err := gate.Check(context.Background(), constants.ActionCreateOwnProfile)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Zero(t, h.backend.CallCount(http.MethodGet, usagePath))
}

func TestGateAllowed(t *testing.T) {
	h := newHarness(t)
	p := &recordingPrompter{}
	gate := NewCreditsGate(h.client, true, p)

	d, err := gate.Check(context.Background(), constants.ActionCreateOwnProfile)
	require.NoError(t, err)
	assert.Equal(t, GateDecision{Action: constants.ActionCreateOwnProfile, Allowed: true, Used: 0, Limit: 3}, d)
	assert.Empty(t, p.prompts)
}

func TestGateDeclinePromptsUpgrade(t *testing.T) {
	h := newHarness(t)
	h.backend.Configure(func(b *testhelpers.BackendBehavior) { b.QuotaAllowed = false })
	p := &recordingPrompter{}
	gate := NewCreditsGate(h.client, true, p)

	ran := false
	allowed, err := gate.CheckAndProceed(context.Background(), constants.ActionCreateOwnProfile, func(context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.False(t, ran)
	require.Len(t, p.prompts, 1)
	assert.Equal(t, 3, p.prompts[0].Used)
}

func TestGateCheckAndProceedPropagatesError(t *testing.T) {
	h := newHarness(t)
	gate := NewCreditsGate(h.client, true, nil)
	boom := errors.New("boom")

	allowed, err := gate.CheckAndProceed(context.Background(), constants.ActionCreateOwnProfile, func(context.Context) error {
		return boom
	})
	assert.True(t, allowed)
	assert.Same(t, boom, err)
}

func TestGateQuotaFailure(t *testing.T) {
	h := newHarness(t)
	h.backend.Configure(func(b *testhelpers.BackendBehavior) { b.QuotaStatus = http.StatusServiceUnavailable })
	gate := NewCreditsGate(h.client, true, nil)

	d, err := gate.Check(context.Background(), constants.ActionCreateOwnProfile)
	assert.ErrorIs(t, err, utils.ErrExternalServiceFailure)
	assert.False(t, d.Allowed)
}
