// Package corun is an in-process cooperative task engine: it schedules
// lightweight tasks across a fixed pool of workers, provides
// wait-queue synchronization that suspends tasks without consuming a
// worker, and propagates deadlines and cancellation through nested
// calls so an outer timeout bounds all downstream work.
//
// Key components:
//
//   - TaskProcessor: owns the worker pool and ready queue. Post
//     schedules a task; scheduling is run-to-block, with suspension
//     only at explicit blocking calls and yields.
//
//   - TaskContext: the per-task control block and handle. It carries
//     the task's lifecycle state, its continuation, its wait-queue
//     membership and its inherited deadline, which travels with the
//     task as it migrates between workers.
//
//   - WaitQueue: the protocol primitives build on to block and wake
//     tasks. Every mutation requires the queue's WaitLock capability.
//     WaitList is the FIFO variant, WaitListLight the single-waiter
//     one.
//
//   - Deadline / DeadlineInfo: absolute monotonic expiry values and
//     the inherited-deadline context installed with
//     SetCurrentDeadlineInfo. Every blocking call is bounded by the
//     earlier of its own deadline and the inherited one.
//
//   - Synchronization primitives: Mutex, Cond, Semaphore, WaitGroup,
//     ErrGroup and SingleFlight, all suspending cooperatively through
//     SleepOn.
//
//   - RunBlocking / SizeGuard: the boundary for synchronous work that
//     must not stall the cooperative workers, bounded by a scoped
//     counter.
package corun
