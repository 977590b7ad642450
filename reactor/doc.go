// Package reactor provides the readiness primitive the socket core suspends on.
//
// A caller registers interest in one direction of a descriptor with
// Subscribe, and parks in Subscription.Wait until the reactor reports the
// descriptor ready or somebody calls WakeAll for it. WakeAll is how close
// unblocks every task suspended on a descriptor.
//
// Poller is the process implementation: a single goroutine running a
// level-triggered poll(2) loop with a self-pipe for wakeups. Interest is armed
// only while a task is inside Wait, so an idle subscription costs one map
// entry and nothing in the poll set.
//
//	sub, err := r.Subscribe(fd, reactor.Read)
//	if err != nil {
//		return err
//	}
//	defer sub.Release()
//	for {
//		n, err := unix.Read(fd, buf)
//		if err == unix.EAGAIN {
//			if err := sub.Wait(ctx); err != nil {
//				return err
//			}
//			continue
//		}
//		...
//	}
package reactor
