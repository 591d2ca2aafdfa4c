package experts

import "strings"

// ServiceType classifies a service offering by how the expert delivers it.
type ServiceType string

const (
	ServiceVideoMeeting    ServiceType = "video-meeting"
	ServiceCall            ServiceType = "call"
	ServiceChat            ServiceType = "chat"
	ServicePriorityMessage ServiceType = "priority-message"
	ServiceDocument        ServiceType = "document"
	ServiceOther           ServiceType = "other"
)

// IsLive reports whether the service is a live interactive session.
// Documents and asynchronous text answers are not.
func (t ServiceType) IsLive() bool {
	switch t {
	case ServiceVideoMeeting, ServiceCall, ServiceChat:
		return true
	default:
		return false
	}
}

// rawServiceTypes maps the type strings the marketplace API and pages use.
var rawServiceTypes = map[string]ServiceType{
	"video-meeting":    ServiceVideoMeeting,
	"video_meeting":    ServiceVideoMeeting,
	"video":            ServiceVideoMeeting,
	"video_call":       ServiceVideoMeeting,
	"1:1":              ServiceVideoMeeting,
	"one_on_one":       ServiceVideoMeeting,
	"webinar":          ServiceVideoMeeting,
	"call":             ServiceCall,
	"phone_call":       ServiceCall,
	"audio_call":       ServiceCall,
	"chat":             ServiceChat,
	"live_chat":        ServiceChat,
	"priority-message": ServicePriorityMessage,
	"priority_dm":      ServicePriorityMessage,
	"dm":               ServicePriorityMessage,
	"query":            ServicePriorityMessage,
	"text_query":       ServicePriorityMessage,
	"document":         ServiceDocument,
	"digital_product":  ServiceDocument,
	"package":          ServiceOther,
}

// ParseServiceType maps a raw marketplace type string onto a ServiceType.
// Unknown values become ServiceOther.
func ParseServiceType(raw string) ServiceType {
	key := strings.ToLower(strings.TrimSpace(raw))
	if t, ok := rawServiceTypes[key]; ok {
		return t
	}
	return ServiceOther
}
