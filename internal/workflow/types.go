package workflow

// Status is the single source of truth for an event's lifecycle position.
// The three approval markers are kept alongside it as an audit trail only.
type Status string

const (
	StatusPendingFacultyApproval  Status = "PENDING_FACULTY_APPROVAL"
	StatusPendingDeanApproval     Status = "PENDING_DEAN_APPROVAL"
	StatusPendingDeanshipApproval Status = "PENDING_DEANSHIP_APPROVAL"
	StatusNeedsRevisionDean       Status = "NEEDS_REVISION_DEAN"
	StatusNeedsRevisionDeanship   Status = "NEEDS_REVISION_DEANSHIP"
	StatusApproved                Status = "APPROVED"
	StatusRejected                Status = "REJECTED"

	// Owned by the event CRUD and lifecycle collaborators; the state machine
	// never writes these and rejects every action on them.
	StatusCancelled Status = "CANCELLED"
	StatusCompleted Status = "COMPLETED"
)

// Statuses enumerates every valid status value.
var Statuses = []Status{
	StatusPendingFacultyApproval,
	StatusPendingDeanApproval,
	StatusPendingDeanshipApproval,
	StatusNeedsRevisionDean,
	StatusNeedsRevisionDeanship,
	StatusApproved,
	StatusRejected,
	StatusCancelled,
	StatusCompleted,
}

// Valid reports whether s is one of the enumerated statuses.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no workflow action is defined from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Role is a closed set of platform roles. Authorization decisions compare
// these values, never raw strings at call sites.
type Role string

const (
	RoleStudent       Role = "STUDENT"
	RoleClubLeader    Role = "CLUB_LEADER"
	RoleFacultyLeader Role = "FACULTY_LEADER"
	RoleDeanOfFaculty Role = "DEAN_OF_FACULTY"
	RoleDeanship      Role = "DEANSHIP"
	RoleAdmin         Role = "ADMIN"
)

// Action is a workflow action requested by an actor.
type Action string

const (
	ActionApprove         Action = "APPROVE"
	ActionRequestRevision Action = "REQUEST_REVISION"
	ActionReject          Action = "REJECT"
	ActionRespond         Action = "RESPOND"
)

// ApprovalMark is the per-stage audit marker.
type ApprovalMark string

const (
	MarkPending  ApprovalMark = "PENDING"
	MarkApproved ApprovalMark = "APPROVED"
	MarkRejected ApprovalMark = "REJECTED"
)

// NotificationType tags the business occurrence a notification reports.
type NotificationType string

const (
	TypeApprovalPending NotificationType = "APPROVAL_PENDING"
	TypeNeedsRevision   NotificationType = "NEEDS_REVISION"
	TypeResubmitted     NotificationType = "EVENT_RESUBMITTED"
	TypeApproved        NotificationType = "EVENT_APPROVED"
	TypeRejected        NotificationType = "EVENT_REJECTED"
	TypeReminderOneDay  NotificationType = "REMINDER_1_DAY"
	TypeReminderOneHour NotificationType = "REMINDER_1_HOUR"

	// Emitted by collaborating subsystems through the same table; listed so
	// readers render them, never produced by this service.
	TypeCommunityAnnouncement NotificationType = "COMMUNITY_ANNOUNCEMENT"
	TypeChatMention           NotificationType = "CHAT_MENTION"
)

// Recurring reports whether the type can legitimately recur for the same
// event across approval cycles. Recurring types are deduplicated only within
// the window since the event's last status change; the rest (reminders) are
// deduplicated over the event's whole lifetime.
func (t NotificationType) Recurring() bool {
	switch t {
	case TypeReminderOneDay, TypeReminderOneHour:
		return false
	}
	return true
}

// Audience identifies the recipient set of a side effect; the fan-out
// service resolves it to concrete user IDs.
type Audience string

const (
	AudienceCreator       Audience = "CREATOR"
	AudienceDeanOfFaculty Audience = "DEAN_OF_FACULTY"
	AudienceDeanship      Audience = "DEANSHIP"
	AudienceAttendees     Audience = "ATTENDEES" // registrants plus savers
)
