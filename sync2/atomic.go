package sync2

import (
	"sync/atomic"
)

type AtomicInt32 int32

func (i32 *AtomicInt32) Add(n int32) int32 {
	return atomic.AddInt32((*int32)(i32), n)
}

func (i32 *AtomicInt32) Set(n int32) {
	atomic.StoreInt32((*int32)(i32), n)
}

func (i32 *AtomicInt32) Get() int32 {
	return atomic.LoadInt32((*int32)(i32))
}

func (i32 *AtomicInt32) CompareAndSwap(oldval, newval int32) (swapped bool) {
	return atomic.CompareAndSwapInt32((*int32)(i32), oldval, newval)
}

// RefCount tracks shared ownership of a resource that must be released
// exactly once.  The count starts at one (the creator's reference).  Once the
// count has dropped to zero the resource is dead: Retain fails and further
// Release calls are no-ops, so a resource can never be released twice.
type RefCount struct {
	count   AtomicInt32
	release func()
}

// NewRefCount returns a RefCount holding one reference.  release is called
// by the Release that drops the last reference.
func NewRefCount(release func()) *RefCount {
	rc := &RefCount{release: release}
	rc.count.Set(1)
	return rc
}

// Retain adds a reference.  It returns false (and adds nothing) if the
// resource has already been released.
func (rc *RefCount) Retain() bool {
	for {
		cur := rc.count.Get()
		if cur <= 0 {
			return false
		}
		if rc.count.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// Release drops a reference.  It returns true iff this call dropped the last
// reference (and therefore ran the release function).
func (rc *RefCount) Release() bool {
	for {
		cur := rc.count.Get()
		if cur <= 0 {
			return false
		}
		if rc.count.CompareAndSwap(cur, cur-1) {
			if cur == 1 {
				if rc.release != nil {
					rc.release()
				}
				return true
			}
			return false
		}
	}
}

// Count returns the number of live references.
func (rc *RefCount) Count() int32 {
	return rc.count.Get()
}

// IsReleased returns true once the last reference has been dropped.
func (rc *RefCount) IsReleased() bool {
	return rc.count.Get() <= 0
}
