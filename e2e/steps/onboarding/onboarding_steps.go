package onboarding

import (
	"context"
	"errors"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext is the slice of the scenario context these steps need.
type TestContext interface {
	Do(method, path string, body any) error
	Status() int
	Body() []byte
	Field(path string) (any, error)
	SetToken(token string)
}

// RegisterSteps registers the onboarding journey steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &onboardingSteps{tc: tc}

	ctx.Step(`^I start a session$`, steps.startSession)
	ctx.Step(`^I choose to be a (seeker|provider)$`, steps.chooseActor)
	ctx.Step(`^I advance$`, steps.advance)
	ctx.Step(`^I navigate to "([^"]*)"$`, steps.navigate)
	ctx.Step(`^I submit my seeker documents$`, steps.submitSeekerDocuments)
	ctx.Step(`^I submit my provider credentials$`, steps.submitProviderCredentials)
	ctx.Step(`^I choose category "([^"]*)" with "([^"]*)" transmission$`, steps.chooseCategory)
	ctx.Step(`^I start verification$`, steps.startVerification)
	ctx.Step(`^I wait for verification to finish$`, steps.awaitVerification)
	ctx.Step(`^verification should have passed$`, steps.verificationPassed)
	ctx.Step(`^I should be on screen "([^"]*)"$`, steps.onScreen)
	ctx.Step(`^I search for providers with "([^"]*)" transmission$`, steps.searchProviders)
	ctx.Step(`^I should see at least (\d+) candidates?$`, steps.atLeastCandidates)
}

type onboardingSteps struct {
	tc TestContext
}

func (s *onboardingSteps) expect(status int) error {
	if got := s.tc.Status(); got != status {
		return fmt.Errorf("expected status %d, got %d: %s", status, got, s.tc.Body())
	}
	return nil
}

func (s *onboardingSteps) startSession(context.Context) error {
	s.tc.SetToken("")
	if err := s.tc.Do("POST", "/sessions", nil); err != nil {
		return err
	}
	if err := s.expect(201); err != nil {
		return err
	}
	token, err := s.tc.Field("token")
	if err != nil {
		return err
	}
	str, ok := token.(string)
	if !ok || str == "" {
		return errors.New("session start returned no token")
	}
	s.tc.SetToken(str)
	return nil
}

func (s *onboardingSteps) chooseActor(_ context.Context, actor string) error {
	if err := s.tc.Do("POST", "/session/actor", map[string]string{"actor": actor}); err != nil {
		return err
	}
	return s.expect(200)
}

func (s *onboardingSteps) advance(context.Context) error {
	return s.tc.Do("POST", "/session/advance", nil)
}

func (s *onboardingSteps) navigate(_ context.Context, screen string) error {
	return s.tc.Do("POST", "/session/navigate", map[string]string{"screen": screen})
}

func (s *onboardingSteps) patch(body map[string]any) error {
	if err := s.tc.Do("PATCH", "/session/profile", body); err != nil {
		return err
	}
	return s.expect(200)
}

func (s *onboardingSteps) submitSeekerDocuments(context.Context) error {
	return s.patch(map[string]any{"seeker": map[string]string{
		"id_number":             "123456789",
		"tax_id":                "529.982.247-25",
		"registry_number":       "SP123456789",
		"medical_clearance_ref": "ladv-2026-001",
	}})
}

func (s *onboardingSteps) submitProviderCredentials(context.Context) error {
	return s.patch(map[string]any{"provider": map[string]string{
		"license_number":        "INS-2026-0042",
		"registration_number":   "CRED-778899",
		"driving_permit_number": "04512345678",
	}})
}

func (s *onboardingSteps) chooseCategory(_ context.Context, category, transmission string) error {
	return s.patch(map[string]any{"seeker": map[string]string{
		"category":     category,
		"transmission": transmission,
	}})
}

func (s *onboardingSteps) startVerification(context.Context) error {
	if err := s.tc.Do("POST", "/session/verification", nil); err != nil {
		return err
	}
	return s.expect(202)
}

func (s *onboardingSteps) awaitVerification(context.Context) error {
	for range 3 {
		if err := s.tc.Do("GET", "/session/verification?wait=30", nil); err != nil {
			return err
		}
		if err := s.expect(200); err != nil {
			return err
		}
		running, err := s.tc.Field("running")
		if err != nil {
			return err
		}
		if running == false {
			return nil
		}
	}
	return errors.New("verification still running after 90s")
}

func (s *onboardingSteps) verificationPassed(context.Context) error {
	passed, err := s.tc.Field("passed")
	if err != nil {
		return err
	}
	if passed != true {
		reason, _ := s.tc.Field("failure_reason")
		return fmt.Errorf("verification did not pass: %v", reason)
	}
	return nil
}

func (s *onboardingSteps) onScreen(_ context.Context, screen string) error {
	if err := s.tc.Do("GET", "/session", nil); err != nil {
		return err
	}
	got, err := s.tc.Field("screen")
	if err != nil {
		return err
	}
	if got != screen {
		return fmt.Errorf("expected screen %q, got %v", screen, got)
	}
	return nil
}

func (s *onboardingSteps) searchProviders(_ context.Context, transmission string) error {
	if err := s.tc.Do("POST", "/session/discovery", map[string]string{"transmission": transmission}); err != nil {
		return err
	}
	return s.expect(200)
}

func (s *onboardingSteps) atLeastCandidates(_ context.Context, n int) error {
	count, err := s.tc.Field("count")
	if err != nil {
		return err
	}
	if c, ok := count.(float64); !ok || int(c) < n {
		return fmt.Errorf("expected at least %d candidates, got %v", n, count)
	}
	return nil
}
