package events

import (
	"strings"

	"github.com/jobmarket/marketplace-client/pkg/model"
)

// eventPath maps login to session.login and leaves already dotted types alone.
func eventPath(t model.SessionEventType) string {
	if strings.Contains(string(t), ".") {
		return string(t)
	}
	return "session." + string(t)
}

// Subject is the NATS subject for t, e.g. marketplace.session.login.v1.
func Subject(prefix string, t model.SessionEventType) string {
	return prefix + "." + eventPath(t) + ".v1"
}

// RoutingKey is the AMQP routing key for t, e.g. marketplace.session.login.
func RoutingKey(prefix string, t model.SessionEventType) string {
	return prefix + "." + eventPath(t)
}
