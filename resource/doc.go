// Package resource budgets the memory, worker slots and transfer bandwidth
// used by tabula.
//
//   - Memory: per-pool (host, device) byte budgets backed by weighted
//     semaphores; usage is always tracked, limits are optional
//   - Workers: caps concurrent conversion workers
//   - Transfers: token-bucket throttle for host<->device staging and for
//     persistence streams (ThrottleWriter, ThrottleReader)
//
//	rc := resource.NewController(resource.Config{
//	    DeviceMemoryLimitBytes:   4 << 30,
//	    TransferLimitBytesPerSec: 2 << 30,
//	})
//
// All methods are safe for concurrent use, and a nil *Controller is a valid
// no-op controller.
package resource
