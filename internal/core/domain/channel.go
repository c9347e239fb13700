package domain

// Channel is one communication medium tracked separately.
type Channel string

const (
	ChannelCalls         Channel = "calls"
	ChannelEmails        Channel = "emails"
	ChannelLiveChat      Channel = "live_chat"
	ChannelEscalations   Channel = "escalations"
	ChannelQAAssessments Channel = "qa_assessments"
	ChannelSurveyTickets Channel = "survey_tickets"
)

// Channels lists every channel in reporting order.
var Channels = []Channel{
	ChannelCalls,
	ChannelEmails,
	ChannelLiveChat,
	ChannelEscalations,
	ChannelQAAssessments,
	ChannelSurveyTickets,
}

// IsValid checks if the channel is one of the tracked channels.
func (c Channel) IsValid() bool {
	for _, known := range Channels {
		if c == known {
			return true
		}
	}
	return false
}

// ChannelCounts holds one count per channel.
type ChannelCounts struct {
	Calls         int `json:"calls"`
	Emails        int `json:"emails"`
	LiveChat      int `json:"liveChat"`
	Escalations   int `json:"escalations"`
	QAAssessments int `json:"qaAssessments"`
	SurveyTickets int `json:"surveyTickets"`
}

// Add increments the counter for the given channel. Negative counts are ignored.
func (c *ChannelCounts) Add(channel Channel, count int) {
	if count <= 0 {
		return
	}
	switch channel {
	case ChannelCalls:
		c.Calls += count
	case ChannelEmails:
		c.Emails += count
	case ChannelLiveChat:
		c.LiveChat += count
	case ChannelEscalations:
		c.Escalations += count
	case ChannelQAAssessments:
		c.QAAssessments += count
	case ChannelSurveyTickets:
		c.SurveyTickets += count
	}
}

// Get returns the counter for a channel.
func (c ChannelCounts) Get(channel Channel) int {
	switch channel {
	case ChannelCalls:
		return c.Calls
	case ChannelEmails:
		return c.Emails
	case ChannelLiveChat:
		return c.LiveChat
	case ChannelEscalations:
		return c.Escalations
	case ChannelQAAssessments:
		return c.QAAssessments
	case ChannelSurveyTickets:
		return c.SurveyTickets
	}
	return 0
}

// Merge adds every counter of other into c.
func (c *ChannelCounts) Merge(other ChannelCounts) {
	for _, ch := range Channels {
		c.Add(ch, other.Get(ch))
	}
}

// Handled is the number of customer contacts an agent handled directly.
func (c ChannelCounts) Handled() int {
	return c.Calls + c.Emails + c.LiveChat
}
