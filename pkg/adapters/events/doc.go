// Package events holds the ports.EventBus adapters that carry run and task
// events.
//
//   - memory: asynchronous in-process fan-out, one process only
//   - redis: Redis Streams read through a consumer group
package events
