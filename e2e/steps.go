package e2e

import (
	"github.com/cucumber/godog"

	"drivematch/e2e/steps/common"
	"drivematch/e2e/steps/onboarding"
	"drivematch/e2e/steps/ratelimit"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// generic requests and assertions
	common.RegisterSteps(ctx, tc)

	onboarding.RegisterSteps(ctx, tc)

	ratelimit.RegisterSteps(ctx, tc)
}
