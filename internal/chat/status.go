package chat

// DeliveryStatus is the delivery state of a message. Statuses are strictly
// ordered and only ever move forward; a stale ack (e.g. DELIVERED arriving
// after READ over a reordered network) must not move a message backwards.
type DeliveryStatus string

const (
	StatusSending   DeliveryStatus = "SENDING" // reserved for client-optimistic use, never set by the server
	StatusSent      DeliveryStatus = "SENT"
	StatusDelivered DeliveryStatus = "DELIVERED"
	StatusRead      DeliveryStatus = "READ"
)

var statusOrder = map[DeliveryStatus]int{
	StatusSending:   0,
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
}

// StatusOrder returns the position of s in the progression, or -1 for an
// unknown status.
func StatusOrder(s DeliveryStatus) int {
	if o, ok := statusOrder[s]; ok {
		return o
	}
	return -1
}

// ApplyStatus returns the status a message should hold after requested is
// applied on top of current. Idempotent and order-independent under replay.
func ApplyStatus(current, requested DeliveryStatus) DeliveryStatus {
	if StatusOrder(requested) > StatusOrder(current) {
		return requested
	}
	return current
}

// ValidStatus reports whether s is a known delivery status.
func ValidStatus(s DeliveryStatus) bool {
	_, ok := statusOrder[s]
	return ok
}
