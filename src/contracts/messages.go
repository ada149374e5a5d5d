// Package contracts defines the names shared by the producer and consumer sides of the bridge.
package contracts

// Topic and consumer group defaults. Both can be overridden through configuration.
const (
	// DefaultTopic is the topic every ingress payload is published to.
	DefaultTopic = "myTopic"

	// DefaultGroupID is the consumer group the dispatcher joins.
	DefaultGroupID = "group_id"
)

// Acknowledgment is returned to ingress callers once a payload has been handed
// to the publisher. It says nothing about whether delivery succeeded.
const Acknowledgment = "Message processed successfully."

// MessageField is the only envelope field the consumer inspects.
const MessageField = "message"

// HeaderRequestID carries the ingress request id on every produced record.
const HeaderRequestID = "x-request-id"
