package orders

const (
	TopicOrderCreated       = "order.created"
	TopicOrderChanged       = "order.changed" // pending edits and deletes
	TopicOrderStatusChanged = "order.status.changed"
	TopicStock              = "inventory.stock"
	TopicSchedule           = "schedule.jobs"
)

// TopicFor routes an event type to its topic.
func TopicFor(eventType string) string {
	switch eventType {
	case EventOrderCreated:
		return TopicOrderCreated
	case EventOrderUpdated, EventOrderDeleted:
		return TopicOrderChanged
	case EventOrderStatusChanged:
		return TopicOrderStatusChanged
	case EventStockReserved, EventStockReleased, EventStockCommitted, EventScrapLogged:
		return TopicStock
	default:
		return TopicSchedule
	}
}

// Topics lists every topic the API publishes to.
func Topics() []string {
	return []string{TopicOrderCreated, TopicOrderChanged, TopicOrderStatusChanged, TopicStock, TopicSchedule}
}

// Partition key = order_id, so all events of one order keep their order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
