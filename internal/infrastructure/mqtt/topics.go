package mqtt

import "fmt"

// Topic prefixes for the Scene Capture MQTT surface.
//
// The service mirrors Home Assistant's service-call model over MQTT:
// commands arrive on scenecapture/service/{service} and structured results
// are published to scenecapture/result/{service}.
const (
	// TopicPrefix is the base for all Scene Capture topics.
	TopicPrefix = "scenecapture"

	// TopicPrefixService is the base for service command topics.
	TopicPrefixService = "scenecapture/service"

	// TopicPrefixResult is the base for service result topics.
	TopicPrefixResult = "scenecapture/result"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "scenecapture/system"
)

// Topics provides builders for Scene Capture MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	cmdTopic := topics.ServiceCommand("scene_update")
//	// Returns: "scenecapture/service/scene_update"
type Topics struct{}

// ServiceCommand returns the topic a service listens on for commands.
//
// Example: scenecapture/service/scene_update
func (Topics) ServiceCommand(service string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixService, service)
}

// ServiceResult returns the topic a service publishes results to.
//
// Example: scenecapture/result/scene_get
func (Topics) ServiceResult(service string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixResult, service)
}

// AllServiceCommands returns a wildcard matching every service command topic.
//
// Example: scenecapture/service/+
func (Topics) AllServiceCommands() string {
	return TopicPrefixService + "/+"
}

// SystemStatus returns the topic for service online/offline status.
//
// Example: scenecapture/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// ServiceFromCommandTopic extracts the service name from a command topic.
// Returns "" if the topic is not a service command topic.
func ServiceFromCommandTopic(topic string) string {
	prefix := TopicPrefixService + "/"
	if len(topic) <= len(prefix) || topic[:len(prefix)] != prefix {
		return ""
	}
	service := topic[len(prefix):]
	for i := 0; i < len(service); i++ {
		if service[i] == '/' {
			return "" // Deeper topics are not service commands
		}
	}
	return service
}
