package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/dtos"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/utils"
)

type GateDecision struct {
	Action  string `json:"action"`
	Allowed bool   `json:"allowed"`
	Used    int    `json:"used"`
	Limit   int    `json:"limit"`
}

// UpgradePrompter is told when the gate declines, so the caller can be
// sent to the paywall.
type UpgradePrompter interface {
	PromptUpgrade(ctx context.Context, decision GateDecision)
}

// CreditsGate is the pre-flight quota check run before any mutating call.
type CreditsGate interface {
	// Check returns the decision and leaves proceeding to the caller.
	Check(ctx context.Context, action string) (GateDecision, error)
	// CheckAndProceed runs onProceed only when allowed. onProceed's error
	// is returned unchanged.
	CheckAndProceed(ctx context.Context, action string, onProceed func(context.Context) error) (bool, error)
}

type quotaAPI interface {
	CheckQuota(ctx context.Context, action string) (dtos.QuotaResponse, error)
}

type creditsGate struct {
	quota    quotaAPI
	enabled  bool
	prompter UpgradePrompter
}

func NewCreditsGate(quota quotaAPI, enabled bool, prompter UpgradePrompter) CreditsGate {
	if prompter == nil {
		prompter = LogUpgradePrompter{}
	}
	return &creditsGate{quota: quota, enabled: enabled, prompter: prompter}
}

func (g *creditsGate) Check(ctx context.Context, action string) (GateDecision, error) {
	if !g.enabled {
		return GateDecision{Action: action, Allowed: true}, nil
	}

	q, err := g.quota.CheckQuota(ctx, action)
	if err != nil {
		return GateDecision{Action: action}, fmt.Errorf("%w: %w", utils.ErrExternalServiceFailure, err)
	}
	d := GateDecision{Action: action, Allowed: q.Allowed, Used: q.Used, Limit: q.Limit}
	if !d.Allowed {
		g.prompter.PromptUpgrade(ctx, d)
	}
	return d, nil
}

func (g *creditsGate) CheckAndProceed(ctx context.Context, action string, onProceed func(context.Context) error) (bool, error) {
	d, err := g.Check(ctx, action)
	if err != nil {
		return false, err
	}
	if !d.Allowed {
		return false, nil
	}

	procErr := onProceed(ctx)
	utils.Logger.WithFields(logrus.Fields{
		"action":    action,
		"used":      d.Used,
		"limit":     d.Limit,
		"succeeded": procErr == nil,
	}).Info("[CreditsGate] Gated action settled")
	return true, procErr
}

// LogUpgradePrompter records the decline. The HTTP layer turns the
// declined result into a paywall redirect.
type LogUpgradePrompter struct{}

func (LogUpgradePrompter) PromptUpgrade(ctx context.Context, d GateDecision) {
	utils.Logger.WithFields(logrus.Fields{
		"action":  d.Action,
		"used":    d.Used,
		"limit":   d.Limit,
		"user_id": utils.UserIDFromContext(ctx),
	}).Info("[CreditsGate] Quota exhausted, prompting upgrade")
}
