package mqtt

import (
	"fmt"
	"strings"

	"github.com/nerrad567/gray-logic-agents/internal/bus"
)

// TopicPrefix is the root of every topic the agents use.
const TopicPrefix = "graylogic/home"

// Topics builds the home topic hierarchy:
//
//	graylogic/home/state            retained snapshot
//	graylogic/home/event            one message per event log line
//	graylogic/home/command/{target} inbound operator commands
//	graylogic/home/status           retained online/offline availability
type Topics struct{}

// State returns the retained snapshot topic.
func (Topics) State() string {
	return TopicPrefix + "/state"
}

// Event returns the event log topic.
func (Topics) Event() string {
	return TopicPrefix + "/event"
}

// Command returns the command topic for target.
func (Topics) Command(target bus.Target) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefix, target)
}

// AllCommands returns the wildcard subscription for every command topic.
func (Topics) AllCommands() string {
	return TopicPrefix + "/command/+"
}

// Status returns the availability topic.
func (Topics) Status() string {
	return TopicPrefix + "/status"
}

// ParseCommandTarget extracts the target from a command topic.
func (Topics) ParseCommandTarget(topic string) (bus.Target, bool) {
	rest, ok := strings.CutPrefix(topic, TopicPrefix+"/command/")
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return bus.Target(rest), true
}
