package navigation

import (
	"slices"

	id "drivematch/pkg/domain"
	dErrors "drivematch/pkg/domain-errors"
)

const (
	ScreenWelcome            id.ScreenID = "welcome"
	ScreenSeekerDocuments    id.ScreenID = "seeker-documents"
	ScreenDocumentValidation id.ScreenID = "document-validation"
	ScreenSeekerCategory     id.ScreenID = "seeker-category"
	ScreenSeekerSearch       id.ScreenID = "seeker-search"
	ScreenSeekerMapSearch    id.ScreenID = "seeker-map-search"
	ScreenSeekerSchedule     id.ScreenID = "seeker-schedule"
	ScreenSeekerHome         id.ScreenID = "seeker-home"
	ScreenClassMode          id.ScreenID = "class-mode"

	ScreenProviderCredentials  id.ScreenID = "provider-credentials"
	ScreenProviderVehicle      id.ScreenID = "provider-vehicle"
	ScreenProviderAvailability id.ScreenID = "provider-availability"
	ScreenProviderHome         id.ScreenID = "provider-home"
	ScreenProviderFinancial    id.ScreenID = "provider-financial"

	ScreenSchedule id.ScreenID = "schedule"
	ScreenProfile  id.ScreenID = "profile"
)

// Flow is the transition table of the onboarding state machine.
//
// Screens owned by one actor are unreachable for the other. Leaving the
// validation screen forward requires a passed verification. The home,
// schedule and profile screens form a hub reachable from each other once
// onboarding is over, so home is re-entrant rather than terminal.
type Flow struct {
	edges map[id.ScreenID][]id.ScreenID
	owner map[id.ScreenID]id.ActorType
	hub   []id.ScreenID
}

// DefaultFlow returns the marketplace onboarding flow.
func DefaultFlow() *Flow {
	return &Flow{
		edges: map[id.ScreenID][]id.ScreenID{
			ScreenWelcome:         {ScreenSeekerDocuments, ScreenProviderCredentials},
			ScreenSeekerDocuments: {ScreenDocumentValidation},
			ScreenProviderCredentials: {
				ScreenDocumentValidation,
			},
			ScreenDocumentValidation:   {ScreenSeekerCategory, ScreenProviderVehicle},
			ScreenSeekerCategory:       {ScreenSeekerSearch, ScreenSeekerMapSearch},
			ScreenSeekerSearch:         {ScreenSeekerSchedule, ScreenSeekerMapSearch},
			ScreenSeekerMapSearch:      {ScreenSeekerSchedule, ScreenSeekerSearch},
			ScreenSeekerSchedule:       {ScreenSeekerHome},
			ScreenSeekerHome:           {ScreenClassMode, ScreenSeekerSearch},
			ScreenClassMode:            {ScreenSeekerHome},
			ScreenProviderVehicle:      {ScreenProviderAvailability},
			ScreenProviderAvailability: {ScreenProviderHome},
			ScreenProviderHome:         {ScreenProviderFinancial},
			ScreenProviderFinancial:    {ScreenProviderHome},
		},
		owner: map[id.ScreenID]id.ActorType{
			ScreenSeekerDocuments:      id.ActorSeeker,
			ScreenSeekerCategory:       id.ActorSeeker,
			ScreenSeekerSearch:         id.ActorSeeker,
			ScreenSeekerMapSearch:      id.ActorSeeker,
			ScreenSeekerSchedule:       id.ActorSeeker,
			ScreenSeekerHome:           id.ActorSeeker,
			ScreenClassMode:            id.ActorSeeker,
			ScreenProviderCredentials:  id.ActorProvider,
			ScreenProviderVehicle:      id.ActorProvider,
			ScreenProviderAvailability: id.ActorProvider,
			ScreenProviderHome:         id.ActorProvider,
			ScreenProviderFinancial:    id.ActorProvider,
		},
		hub: []id.ScreenID{ScreenSeekerHome, ScreenProviderHome, ScreenSchedule, ScreenProfile},
	}
}

// Known reports whether screen belongs to the flow.
func (f *Flow) Known(screen id.ScreenID) bool {
	if screen == ScreenWelcome || slices.Contains(f.hub, screen) {
		return true
	}
	_, ok := f.edges[screen]
	return ok
}

// Screens lists every screen in the flow, sorted.
func (f *Flow) Screens() []id.ScreenID {
	seen := map[id.ScreenID]struct{}{ScreenWelcome: {}}
	for from, tos := range f.edges {
		seen[from] = struct{}{}
		for _, to := range tos {
			seen[to] = struct{}{}
		}
	}
	for _, s := range f.hub {
		seen[s] = struct{}{}
	}
	out := make([]id.ScreenID, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}

// Owner returns the actor a screen is reserved for, or "" for shared screens.
func (f *Flow) Owner(screen id.ScreenID) id.ActorType {
	return f.owner[screen]
}

// Home is the actor's home screen.
func Home(actor id.ActorType) (id.ScreenID, error) {
	switch actor {
	case id.ActorSeeker:
		return ScreenSeekerHome, nil
	case id.ActorProvider:
		return ScreenProviderHome, nil
	default:
		return "", dErrors.New(dErrors.CodePreconditionFailed, "actor type must be selected first")
	}
}

// Allows reports whether the table has an edge from one screen to the other,
// ignoring actor ownership and verification.
func (f *Flow) Allows(from, to id.ScreenID) bool {
	if slices.Contains(f.edges[from], to) {
		return true
	}
	return slices.Contains(f.hub, from) && slices.Contains(f.hub, to) && from != to
}

// Check validates a requested transition for an actor.
//
// Errors:
//   - CodeInvalidInput for screens outside the flow
//   - CodeForbidden when the target belongs to the other actor
//   - CodePreconditionFailed when the actor is unset past welcome or the
//     target belongs to one actor, or when leaving validation forward before
//     verification passed
//   - CodeInvariantViolation when the table has no such edge
func (f *Flow) Check(from, to id.ScreenID, actor id.ActorType, verified bool) error {
	if !f.Known(to) {
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown screen %q", to)
	}
	if !f.Known(from) {
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown screen %q", from)
	}
	if actor == "" && (from != ScreenWelcome || f.owner[to] != "") {
		return dErrors.New(dErrors.CodePreconditionFailed, "actor type must be selected first")
	}
	if owner := f.owner[to]; owner != "" && actor != "" && owner != actor {
		return dErrors.Newf(dErrors.CodeForbidden, "screen %s is not available to %s", to, actor)
	}
	if !f.Allows(from, to) {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "cannot navigate from %s to %s", from, to)
	}
	if from == ScreenDocumentValidation && !verified {
		return dErrors.New(dErrors.CodePreconditionFailed, "verification has not passed")
	}
	return nil
}

// Next resolves the default forward screen from the current one.
//
// Errors: CodePreconditionFailed when the actor is unset or verification is
// required and has not passed; CodeInvariantViolation when from has no
// forward step.
func (f *Flow) Next(from id.ScreenID, actor id.ActorType, verified bool) (id.ScreenID, error) {
	if !actor.IsValid() {
		return "", dErrors.New(dErrors.CodePreconditionFailed, "actor type must be selected first")
	}
	seeker := actor == id.ActorSeeker

	var next id.ScreenID
	switch from {
	case ScreenWelcome:
		next = pick(seeker, ScreenSeekerDocuments, ScreenProviderCredentials)
	case ScreenSeekerDocuments, ScreenProviderCredentials:
		next = ScreenDocumentValidation
	case ScreenDocumentValidation:
		if !verified {
			return "", dErrors.New(dErrors.CodePreconditionFailed, "verification has not passed")
		}
		next = pick(seeker, ScreenSeekerCategory, ScreenProviderVehicle)
	case ScreenSeekerCategory:
		next = ScreenSeekerSearch
	case ScreenSeekerSearch, ScreenSeekerMapSearch:
		next = ScreenSeekerSchedule
	case ScreenSeekerSchedule, ScreenClassMode:
		next = ScreenSeekerHome
	case ScreenProviderVehicle:
		next = ScreenProviderAvailability
	case ScreenProviderAvailability, ScreenProviderFinancial:
		next = ScreenProviderHome
	case ScreenSchedule, ScreenProfile:
		return Home(actor)
	default:
		return "", dErrors.Newf(dErrors.CodeInvariantViolation, "no forward step from %s", from)
	}
	if owner := f.owner[next]; owner != "" && owner != actor {
		return "", dErrors.Newf(dErrors.CodeForbidden, "screen %s is not available to %s", next, actor)
	}
	return next, nil
}

func pick(seeker bool, a, b id.ScreenID) id.ScreenID {
	if seeker {
		return a
	}
	return b
}
