// Package queue implements the bulk import queue: a serial driver that walks a
// list of submitted images, sends each one to the analysis service, and records
// the outcome on the item.
//
// The package is split along the lines of the processing model:
//
//   - item.go and transition.go hold the item state machine. Apply is a pure
//     function; every status change made by the driver goes through it.
//   - classify.go maps a raw analysis failure to RateLimited, ServiceOverloaded
//     or Permanent. It is the only place that inspects error text.
//   - wait.go is the interruptible countdown used between transient retries.
//   - queue.go and driver.go own the item list and run the control loop.
//   - collect.go turns finished items into artifacts for persistence.
//
// Only one run may own a Queue at a time; a second Run call fails with
// ErrRunInProgress. Cancellation is cooperative: RequestStop is honoured at the
// next countdown tick or at the top of the next iteration, never in the middle
// of an analysis call.
package queue
