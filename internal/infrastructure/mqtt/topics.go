package mqtt

import "fmt"

// Topic prefixes for all simulator topics.
const (
	// TopicPrefix is the base for everything modemsim publishes.
	TopicPrefix = "modemsim"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "modemsim/system"
)

// Topics provides builders for modemsim MQTT topics.
// Using these helpers keeps topic naming consistent across the codebase.
type Topics struct{}

// SystemStatus returns the retained status topic.
//
// Example: modemsim/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// Event returns the topic for one event kind.
//
// Example: modemsim/event/rx
func (Topics) Event(kind string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefix, kind)
}
