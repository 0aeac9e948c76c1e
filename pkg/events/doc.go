/*
Package events provides an in-process, best-effort pub/sub broker.

Publish never blocks on a slow subscriber: the broker's own inbound
channel is buffered, and a full subscriber channel simply drops the
event rather than stalling the publisher. This makes the broker safe to
call from a lock-held code path (a cache install, a mirror save) but
unsuitable as a delivery guarantee — nothing here replaces the
diff-hash check in pkg/persistence or a direct return value.

The caches, the EDR store and the persistence mirrors publish events
here. No component in this repository subscribes: the persistence
mirror saves on its own ticker, and pkg/metrics is updated by direct
calls.
*/
package events
