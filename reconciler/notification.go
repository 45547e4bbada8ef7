package reconciler

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strings"

	"storefront-svc/models"
)

// notificationBody covers the payload shapes the gateway has used over time:
// {"type":"payment","data":{"id":"123"}}, {"topic":"payment","id":123} and
// {"action":"payment.created","data":{"id":123}}.
type notificationBody struct {
	Type   string          `json:"type"`
	Topic  string          `json:"topic"`
	Action string          `json:"action"`
	ID     json.RawMessage `json:"id"`
	Data   struct {
		ID json.RawMessage `json:"id"`
	} `json:"data"`
}

// Normalize reduces a notification delivered through query parameters, a JSON
// body or both into one PaymentNotification. Query values win over the body.
// A body that is not JSON is ignored.
func Normalize(query url.Values, body []byte) models.PaymentNotification {
	n := models.PaymentNotification{
		Topic:     firstNonEmpty(query.Get("type"), query.Get("topic")),
		PaymentID: firstNonEmpty(query.Get("data.id"), query.Get("id")),
	}

	var b notificationBody
	if len(bytes.TrimSpace(body)) > 0 && json.Unmarshal(body, &b) == nil {
		if n.Topic == "" {
			n.Topic = firstNonEmpty(b.Type, b.Topic, topicFromAction(b.Action))
		}
		if n.PaymentID == "" {
			n.PaymentID = firstNonEmpty(rawID(b.Data.ID), rawID(b.ID))
		}
	}

	n.Topic = strings.ToLower(strings.TrimSpace(n.Topic))
	n.PaymentID = strings.TrimSpace(n.PaymentID)
	return n
}

func topicFromAction(action string) string {
	topic, _, _ := strings.Cut(action, ".")
	return topic
}

// rawID accepts a JSON string or number.
func rawID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
