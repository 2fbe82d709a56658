package redis

// Redis key naming for queue-service data. Every group hash shares a
// prefix to avoid collisions with other keys in the same database.

const defaultKeyPrefix = "queue:"

// groupKey returns the hash key for a group: {prefix}{group}
func (a *Adapter) groupKey(group string) string { return a.keyPrefix + group }
