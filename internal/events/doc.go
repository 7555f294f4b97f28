// Package events provides the lifecycle events published by the import queue.
//
// The queue driver emits an event whenever an item is submitted, changes status
// or ticks down a wait, and when a run starts or finishes. Observers such as
// the Prometheus metrics handler and the CLI progress printer subscribe through
// EventHandler without the queue knowing about them.
//
// The primary components are:
// - QueueEvent: A single observation of queue activity
// - EventHandler: Interface for components that can handle events
// - EventEmitter: Interface for components that can emit events
// - Dispatcher: EventEmitter that fans events out to subscribed handlers
package events
