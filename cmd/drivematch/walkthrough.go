package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"drivematch/internal/bootstrap"
	discovery "drivematch/internal/discovery/models"
	"drivematch/internal/platform/config"
	profile "drivematch/internal/profile/models"
	"drivematch/internal/session"
	"drivematch/internal/verification"
	id "drivematch/pkg/domain"
)

// lockedWriter serializes writes from the verification goroutine and the
// command itself.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = fmt.Fprintf(l.w, format, args...)
}

type walkthroughOptions struct {
	actor        string
	category     string
	transmission string
	latency      time.Duration
	failureRate  float64
}

func newWalkthroughCmd() *cobra.Command {
	var opts walkthroughOptions
	cmd := &cobra.Command{
		Use:   "walkthrough",
		Short: "Drive one in-process onboarding session end to end",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.FromEnv()
			// always in-process: no external stores
			cfg.Redis.URL = ""
			cfg.DatabaseURL = ""
			cfg.Kafka.Brokers = nil
			cfg.Verification.Latency = opts.latency
			cfg.Verification.FailureRate = opts.failureRate

			return runWalkthrough(cmd.Context(), cmd.OutOrStdout(), cfg, opts, nil)
		},
	}
	cmd.Flags().StringVar(&opts.actor, "actor", "seeker", "seeker or provider")
	cmd.Flags().StringVar(&opts.category, "category", "B", "license category for the seeker or the provider's vehicle")
	cmd.Flags().StringVar(&opts.transmission, "transmission", "automatic", "manual or automatic (category B only)")
	cmd.Flags().DurationVar(&opts.latency, "latency", 300*time.Millisecond, "simulated authority latency per step")
	cmd.Flags().Float64Var(&opts.failureRate, "failure-rate", 0, "probability that an authority refuses a step")
	return cmd
}

// runWalkthrough builds an App from cfg and walks one session of the chosen
// actor to its home screen, printing each step. extra options are applied
// after the defaults.
func runWalkthrough(ctx context.Context, w io.Writer, cfg config.Server, opts walkthroughOptions, extra []bootstrap.Option) error {
	actor, err := id.ParseActorType(strings.ToLower(opts.actor))
	if err != nil {
		return err
	}
	category, err := id.ParseCategory(opts.category)
	if err != nil {
		return err
	}
	transmission, err := id.ParseTransmission(opts.transmission)
	if err != nil {
		return err
	}
	if category != id.CategoryB {
		transmission = id.TransmissionManual
	}

	out := &lockedWriter{w: w}
	observer := func(_ id.SessionID, ev verification.StepEvent) {
		line := fmt.Sprintf("  [%d] %-24s %s", ev.Index+1, ev.Record.Label, ev.Record.Status)
		if ev.Record.FailureReason != "" {
			line += " (" + ev.Record.FailureReason + ")"
		}
		out.printf("%s\n", line)
	}
	appOpts := append([]bootstrap.Option{bootstrap.WithSessionOptions(session.WithStepObserver(observer))}, extra...)
	app, err := bootstrap.New(ctx, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), appOpts...)
	if err != nil {
		return err
	}
	defer app.Close()

	wk := walker{svc: app.Sessions, out: out}
	view, err := app.Sessions.Start(ctx)
	if err != nil {
		return err
	}
	wk.sid = view.SessionID
	out.printf("session %s started on %s\n", view.SessionID, view.Screen)

	steps := []func(context.Context) error{
		func(ctx context.Context) error { return wk.view(app.Sessions.SelectActor(ctx, wk.sid, actor)) },
		wk.advance,
		func(ctx context.Context) error { return wk.merge(ctx, documentsFor(actor)) },
		wk.advance,
		func(ctx context.Context) error { return wk.verify(ctx, cfg.Verification) },
		wk.advance,
	}
	if actor == id.ActorSeeker {
		steps = append(steps, wk.seekerSteps(category, transmission)...)
	} else {
		steps = append(steps, wk.providerSteps(category, transmission)...)
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			return err
		}
	}
	out.printf("onboarding complete\n")
	return nil
}

type walker struct {
	svc *session.Service
	sid id.SessionID
	out *lockedWriter
}

func (w *walker) view(v *session.View, err error) error {
	if err != nil {
		return err
	}
	w.out.printf("-> %s\n", v.Screen)
	return nil
}

func (w *walker) advance(ctx context.Context) error {
	return w.view(w.svc.Advance(ctx, w.sid))
}

func (w *walker) merge(ctx context.Context, patch profile.Patch) error {
	_, err := w.svc.MergeProfile(ctx, w.sid, patch)
	return err
}

func (w *walker) verify(ctx context.Context, cfg config.VerificationConfig) error {
	w.out.printf("verifying documents\n")
	if _, err := w.svc.StartVerification(ctx, w.sid); err != nil {
		return err
	}
	// three steps plus slack for the timeout path
	waitCtx, cancel := context.WithTimeout(ctx, 3*cfg.Latency+cfg.StepTimeout+5*time.Second)
	defer cancel()
	result, err := w.svc.AwaitVerification(waitCtx, w.sid)
	if err != nil {
		return err
	}
	if !result.Passed {
		return fmt.Errorf("verification failed at %s: %s", result.FailedStep, result.FailureReason)
	}
	return nil
}

func (w *walker) seekerSteps(category id.Category, transmission id.Transmission) []func(context.Context) error {
	var picked discovery.Candidate
	return []func(context.Context) error{
		func(ctx context.Context) error {
			return w.merge(ctx, profile.Patch{Seeker: &profile.SeekerPatch{Category: &category, Transmission: &transmission}})
		},
		w.advance,
		func(ctx context.Context) error {
			found, err := w.svc.Discover(ctx, w.sid, discovery.Filters{SortBy: discovery.SortRating})
			if err != nil {
				return err
			}
			w.out.printf("%d providers teach category %s\n", len(found), category)
			if len(found) == 0 {
				return fmt.Errorf("no provider teaches category %s", category)
			}
			picked = found[0]
			_, err = w.svc.SelectProvider(ctx, w.sid, picked.ID)
			if err == nil {
				w.out.printf("selected %s (%.1f stars, %.2f/h)\n", picked.Name, picked.Rating, picked.HourlyPrice)
			}
			return err
		},
		w.advance,
		func(ctx context.Context) error {
			tomorrow := time.Now().UTC().AddDate(0, 0, 1)
			lesson, err := w.svc.ScheduleSession(ctx, w.sid, tomorrow, profile.LessonSlots[0])
			if err == nil {
				w.out.printf("lesson booked with %s on %s at %s\n", lesson.ProviderName, lesson.Date.Format(time.DateOnly), lesson.TimeSlot)
			}
			return err
		},
		w.advance,
	}
}

func (w *walker) providerSteps(category id.Category, transmission id.Transmission) []func(context.Context) error {
	year := time.Now().Year() - 2
	return []func(context.Context) error{
		func(ctx context.Context) error {
			return w.merge(ctx, profile.Patch{Provider: &profile.ProviderPatch{
				VehicleModel:        ptr("Onix 1.0"),
				VehicleYear:         &year,
				VehiclePlate:        ptr("BRA2E19"),
				VehicleCategory:     &category,
				VehicleTransmission: &transmission,
			}})
		},
		w.advance,
		func(ctx context.Context) error {
			return w.merge(ctx, profile.Patch{Provider: &profile.ProviderPatch{
				HourlyPrice: ptr(85.0),
				Availability: &[]profile.AvailabilityWindow{
					{Weekday: id.Monday, Start: "08:00", End: "12:00"},
					{Weekday: id.Wednesday, Start: "14:00", End: "18:00"},
				},
			}})
		},
		w.advance,
	}
}

func documentsFor(actor id.ActorType) profile.Patch {
	if actor == id.ActorProvider {
		return profile.Patch{Provider: &profile.ProviderPatch{
			LicenseNumber:       ptr("INST-0042"),
			RegistrationNumber:  ptr("EAR-7781"),
			DrivingPermitNumber: ptr("04512345678"),
		}}
	}
	return profile.Patch{Seeker: &profile.SeekerPatch{
		IDNumber:            ptr("123456789"),
		TaxID:               ptr("529.982.247-25"),
		RegistryNumber:      ptr("SP123456789"),
		MedicalClearanceRef: ptr("ladv-2026-001"),
	}}
}

func ptr[T any](v T) *T { return &v }
