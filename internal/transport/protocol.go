package transport

// frame is the JSON envelope carried over the WebSocket connection, one
// JSON object per WebSocket message. Op is one of "subscribe", "unsubscribe", or "publish"; Group
// carries a shared-subscription group name on subscribe/unsubscribe.
type frame struct {
	Op      string `json:"op"`
	Topic   string `json:"topic"`
	QoS     uint8  `json:"qos,omitempty"`
	Group   string `json:"group,omitempty"`
	Payload []byte `json:"payload,omitempty"`
}

type errorFrame struct {
	Op     string `json:"op"`
	Reason string `json:"reason"`
}

const (
	opSubscribe   = "subscribe"
	opUnsubscribe = "unsubscribe"
	opPublish     = "publish"
	opError       = "error"
)

func newErrorFrame(reason string) errorFrame {
	return errorFrame{Op: opError, Reason: reason}
}
