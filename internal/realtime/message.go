package realtime

type SSEEvent string

const (
	SSEEventJobCreated  SSEEvent = "JobCreated"
	SSEEventJobProgress SSEEvent = "JobProgress"
	SSEEventJobFailed   SSEEvent = "JobFailed"
	SSEEventJobDone     SSEEvent = "JobDone"

	// SSEEventReportUpdated fires whenever a report changes status or title.
	SSEEventReportUpdated SSEEvent = "ReportUpdated"
	SSEEventReportDeleted SSEEvent = "ReportDeleted"

	SSEEventProfileStatusChanged SSEEvent = "ProfileStatusChanged"
)

type SSEMessage struct {
	Channel string   `json:"channel"`
	Event   SSEEvent `json:"event"`
	Data    any      `json:"data,omitempty"`
}

// AdminChannel carries waitlist changes to every connected administrator.
const AdminChannel = "admins"
