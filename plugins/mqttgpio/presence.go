package mqttgpio

import (
	"encoding/json"
	"time"
)

// Values carried by the retained message on <prefix>/system/status.
const (
	statusOnline  = "online"
	statusOffline = "offline"

	// reasonCrash is the Last Will reason the broker publishes when the
	// daemon vanishes without closing the connection.
	reasonCrash = "unexpected_disconnect"

	// reasonShutdown marks a clean Close.
	reasonShutdown = "graceful_shutdown"
)

// presence is the status message remote endpoints watch to decide whether
// the daemon is reachable. Endpoints that fail their lines safe key off
// the offline reasons.
type presence struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

// statusPayload renders one presence message. reason is empty while
// online.
func statusPayload(status, clientID, reason string) []byte {
	p, _ := json.Marshal(presence{
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return p
}
