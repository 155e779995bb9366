package mqtt

import "strings"

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "doorwatch"

// Topics builds doorwatch topic names under a prefix.
//
//	topics := mqtt.NewTopics("doorwatch")
//	topics.State("bf0123") // "doorwatch/state/bf0123"
type Topics struct {
	prefix string
}

// NewTopics returns builders for prefix. An empty prefix means DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the topic prefix.
func (t Topics) Prefix() string {
	return t.prefix
}

// State is the retained door state topic for a device.
func (t Topics) State(deviceID string) string {
	return t.prefix + "/state/" + deviceID
}

// Refresh is the command topic that requests an immediate read.
func (t Topics) Refresh(deviceID string) string {
	return t.prefix + "/command/" + deviceID + "/refresh"
}

// SystemStatus is the retained online/offline topic.
func (t Topics) SystemStatus() string {
	return t.prefix + "/system/status"
}
