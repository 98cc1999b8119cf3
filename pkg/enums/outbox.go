package enums

// OutboxEventType identifies the kind of domain event stored in the outbox.
type OutboxEventType string

const (
	OutboxEventOrderCreated       OutboxEventType = "order.created"
	OutboxEventOrderStatusChanged OutboxEventType = "order.status_changed"
)

func (t OutboxEventType) String() string {
	return string(t)
}

// OutboxAggregateType identifies the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	OutboxAggregateOrder OutboxAggregateType = "order"
)

func (t OutboxAggregateType) String() string {
	return string(t)
}
