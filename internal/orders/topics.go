package orders

const (
	TopicInventoryDeducted = "inventory.deducted"
	TopicOrderFinalized    = "order.finalized"
)

// Partition key = order number / product code, supaya event satu entitas tetap berurutan.
func PartitionKey(id string) []byte { return []byte(id) }
