package workflow

import (
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Subject is the slice of an event the state machine needs to decide on.
type Subject struct {
	EventID   uuid.UUID
	Status    Status
	CreatorID uuid.UUID
	CollegeID uuid.UUID
}

// Actor is the authenticated identity requesting a transition.
type Actor struct {
	UserID    uuid.UUID
	Role      Role
	CollegeID *uuid.UUID
}

// Request carries the action and, where required, the reason or response text.
type Request struct {
	Action Action
	Reason string
}

// Updates lists the field writes a transition implies. Nil fields are left
// untouched by the store.
type Updates struct {
	FacultyApproval          *ApprovalMark
	DeanApproval             *ApprovalMark
	DeanshipApproval         *ApprovalMark
	DeanRevisionMessage      *string
	DeanRevisionResponse     *string
	DeanshipRevisionMessage  *string
	DeanshipRevisionResponse *string
}

// Effect is a notification side effect the caller must emit after the
// transition has been durably committed.
type Effect struct {
	Kind     NotificationType
	Audience Audience
}

// Outcome is the full result of a decision: where the event goes, which
// fields change, and who gets told.
type Outcome struct {
	NextStatus Status
	Updates    Updates
	Effects    []Effect
}

// Decide computes the transition for the given subject, actor and request.
// It performs no I/O and mutates nothing; on any error the returned Outcome
// is the zero value and the caller must not change the event.
//
// A resubmission from a revision state returns control only to the stage that
// requested the revision; earlier approvals are never re-run.
func Decide(subject Subject, actor Actor, req Request) (Outcome, error) {
	if req.Action == ActionRequestRevision || req.Action == ActionReject || req.Action == ActionRespond {
		if strings.TrimSpace(req.Reason) == "" {
			return Outcome{}, errors.Wrapf(ErrValidation, "action %s", req.Action)
		}
	}

	switch subject.Status {
	case StatusPendingFacultyApproval:
		return decideFacultyStage(subject, actor, req)
	case StatusPendingDeanApproval:
		return decideDeanStage(subject, actor, req)
	case StatusNeedsRevisionDean:
		return decideRevisionResponse(subject, actor, req, StatusPendingDeanApproval)
	case StatusPendingDeanshipApproval:
		return decideDeanshipStage(subject, actor, req)
	case StatusNeedsRevisionDeanship:
		return decideRevisionResponse(subject, actor, req, StatusPendingDeanshipApproval)
	default:
		if subject.Status.Terminal() {
			return Outcome{}, errors.Wrapf(ErrInvalidTransition, "no actions defined in terminal state %s", subject.Status)
		}
		return Outcome{}, errors.Wrapf(ErrInvalidTransition, "no actions defined in state %s", subject.Status)
	}
}

// decideFacultyStage handles the first stage. Only approve is a defined
// transition here: the status set has no faculty revision state and REJECTED
// is reachable only from the later stages, so the UI's deny action surfaces
// the invalid-transition error until product rules say otherwise.
func decideFacultyStage(subject Subject, actor Actor, req Request) (Outcome, error) {
	if req.Action != ActionApprove {
		return Outcome{}, errors.Wrapf(ErrInvalidTransition, "action %s in state %s", req.Action, subject.Status)
	}
	if err := requireCollegeOfficer(actor, RoleFacultyLeader, subject.CollegeID); err != nil {
		return Outcome{}, err
	}
	mark := MarkApproved
	return Outcome{
		NextStatus: StatusPendingDeanApproval,
		Updates:    Updates{FacultyApproval: &mark},
		Effects:    []Effect{{Kind: TypeApprovalPending, Audience: AudienceDeanOfFaculty}},
	}, nil
}

func decideDeanStage(subject Subject, actor Actor, req Request) (Outcome, error) {
	switch req.Action {
	case ActionApprove, ActionRequestRevision, ActionReject:
	default:
		return Outcome{}, errors.Wrapf(ErrInvalidTransition, "action %s in state %s", req.Action, subject.Status)
	}
	if err := requireCollegeOfficer(actor, RoleDeanOfFaculty, subject.CollegeID); err != nil {
		return Outcome{}, err
	}

	switch req.Action {
	case ActionApprove:
		mark := MarkApproved
		return Outcome{
			NextStatus: StatusPendingDeanshipApproval,
			Updates:    Updates{DeanApproval: &mark},
			Effects:    []Effect{{Kind: TypeApprovalPending, Audience: AudienceDeanship}},
		}, nil
	case ActionRequestRevision:
		reason := req.Reason
		return Outcome{
			NextStatus: StatusNeedsRevisionDean,
			Updates:    Updates{DeanRevisionMessage: &reason},
			Effects:    []Effect{{Kind: TypeNeedsRevision, Audience: AudienceCreator}},
		}, nil
	default: // ActionReject
		mark := MarkRejected
		reason := req.Reason
		return Outcome{
			NextStatus: StatusRejected,
			Updates:    Updates{DeanApproval: &mark, DeanRevisionMessage: &reason},
			Effects:    []Effect{{Kind: TypeRejected, Audience: AudienceCreator}},
		}, nil
	}
}

func decideDeanshipStage(subject Subject, actor Actor, req Request) (Outcome, error) {
	switch req.Action {
	case ActionApprove, ActionRequestRevision, ActionReject:
	default:
		return Outcome{}, errors.Wrapf(ErrInvalidTransition, "action %s in state %s", req.Action, subject.Status)
	}
	// The deanship office is university-wide; any holder may act.
	if actor.Role != RoleDeanship {
		return Outcome{}, errors.Wrapf(ErrUnauthorized, "role %s cannot act in state %s", actor.Role, subject.Status)
	}

	switch req.Action {
	case ActionApprove:
		mark := MarkApproved
		return Outcome{
			NextStatus: StatusApproved,
			Updates:    Updates{DeanshipApproval: &mark},
			Effects:    []Effect{{Kind: TypeApproved, Audience: AudienceCreator}},
		}, nil
	case ActionRequestRevision:
		reason := req.Reason
		return Outcome{
			NextStatus: StatusNeedsRevisionDeanship,
			Updates:    Updates{DeanshipRevisionMessage: &reason},
			Effects:    []Effect{{Kind: TypeNeedsRevision, Audience: AudienceCreator}},
		}, nil
	default: // ActionReject
		mark := MarkRejected
		reason := req.Reason
		return Outcome{
			NextStatus: StatusRejected,
			Updates:    Updates{DeanshipApproval: &mark, DeanshipRevisionMessage: &reason},
			Effects:    []Effect{{Kind: TypeRejected, Audience: AudienceCreator}},
		}, nil
	}
}

// decideRevisionResponse returns the event to exactly the stage that asked
// for the revision.
func decideRevisionResponse(subject Subject, actor Actor, req Request, returnTo Status) (Outcome, error) {
	if req.Action != ActionRespond {
		return Outcome{}, errors.Wrapf(ErrInvalidTransition, "action %s in state %s", req.Action, subject.Status)
	}
	if actor.UserID != subject.CreatorID {
		return Outcome{}, errors.Wrap(ErrUnauthorized, "only the event's creator may respond to a revision request")
	}

	response := req.Reason
	if returnTo == StatusPendingDeanApproval {
		return Outcome{
			NextStatus: returnTo,
			Updates:    Updates{DeanRevisionResponse: &response},
			Effects:    []Effect{{Kind: TypeResubmitted, Audience: AudienceDeanOfFaculty}},
		}, nil
	}
	return Outcome{
		NextStatus: returnTo,
		Updates:    Updates{DeanshipRevisionResponse: &response},
		Effects:    []Effect{{Kind: TypeResubmitted, Audience: AudienceDeanship}},
	}, nil
}

// requireCollegeOfficer checks that the actor holds the given per-college
// office for the event's college.
func requireCollegeOfficer(actor Actor, role Role, collegeID uuid.UUID) error {
	if actor.Role != role {
		return errors.Wrapf(ErrUnauthorized, "role %s is not %s", actor.Role, role)
	}
	if actor.CollegeID == nil || *actor.CollegeID != collegeID {
		return errors.Wrapf(ErrUnauthorized, "%s is scoped to another college", role)
	}
	return nil
}
