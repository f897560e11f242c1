package ratelimit

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext is the slice of the scenario context these steps need.
type TestContext interface {
	Do(method, path string, body any) error
	Status() int
	Header(name string) string
	SetClientIP(ip string)
	SetToken(token string)
}

// RegisterSteps registers session start throttling steps.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &ratelimitSteps{tc: tc}

	ctx.Step(`^my client address is "([^"]*)"$`, steps.clientAddress)
	ctx.Step(`^I keep starting sessions until refused, at most (\d+) times$`, steps.startUntilRefused)
	ctx.Step(`^I should have been refused$`, steps.shouldHaveBeenRefused)
	ctx.Step(`^at least (\d+) sessions? should have started first$`, steps.atLeastStarted)
}

type ratelimitSteps struct {
	tc      TestContext
	started int
	refused bool
}

func (s *ratelimitSteps) clientAddress(_ context.Context, ip string) error {
	s.tc.SetClientIP(ip)
	s.started = 0
	s.refused = false
	return nil
}

func (s *ratelimitSteps) startUntilRefused(_ context.Context, max int) error {
	s.tc.SetToken("")
	for range max {
		if err := s.tc.Do("POST", "/sessions", nil); err != nil {
			return err
		}
		switch s.tc.Status() {
		case 201:
			s.started++
		case 429:
			s.refused = true
			return nil
		default:
			return fmt.Errorf("unexpected status %d while starting sessions", s.tc.Status())
		}
	}
	return nil
}

func (s *ratelimitSteps) shouldHaveBeenRefused(context.Context) error {
	if !s.refused {
		return fmt.Errorf("never refused after %d sessions", s.started)
	}
	if s.tc.Header("Retry-After") == "" {
		return fmt.Errorf("refusal carried no Retry-After header")
	}
	return nil
}

func (s *ratelimitSteps) atLeastStarted(_ context.Context, n int) error {
	if s.started < n {
		return fmt.Errorf("expected at least %d sessions before refusal, got %d", n, s.started)
	}
	return nil
}
