package kernel

import "sync"

// RemoveLock is a counted lock that blocks device-object teardown until
// every in-flight IRP dispatch has released it, mirroring IO_REMOVE_LOCK.
// Dispatch acquires a reference before enqueuing or otherwise handing work
// to the worker; the worker releases it once the IRP is completed.
// REMOVE_DEVICE acquires its own reference and converts it into a
// release-and-wait, so it cannot return until every other reference has
// drained.
type RemoveLock struct {
	mu        sync.Mutex
	wg        sync.WaitGroup
	removing  bool
	outstanding int
}

// NewRemoveLock returns a RemoveLock ready to guard a freshly-created device.
func NewRemoveLock() *RemoveLock {
	return &RemoveLock{}
}

// Acquire takes a reference, rejecting new acquisitions once removal has
// begun. Every successful Acquire must be paired with exactly one Release.
func (l *RemoveLock) Acquire() Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.removing {
		return StatusNoSuchDevice
	}
	l.outstanding++
	l.wg.Add(1)
	return StatusSuccess
}

// Release drops a reference acquired via Acquire.
func (l *RemoveLock) Release() {
	l.mu.Lock()
	l.outstanding--
	l.mu.Unlock()
	l.wg.Done()
}

// ReleaseAndWait marks the device as removing (rejecting further Acquire
// calls), releases the caller's own reference, and blocks until every
// outstanding reference has been released. After it returns, the device
// extension is safe to free.
func (l *RemoveLock) ReleaseAndWait() {
	l.mu.Lock()
	l.removing = true
	l.outstanding--
	l.mu.Unlock()

	l.wg.Done()
	l.wg.Wait()
}

// Outstanding reports the number of currently-held references. It exists for
// tests asserting the "acquisitions == releases by completion time" invariant.
func (l *RemoveLock) Outstanding() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.outstanding
}
