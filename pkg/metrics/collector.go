package metrics

import "time"

// Sizer reports the current size of each in-memory cache. pkg/hub
// implements this without pkg/metrics importing pkg/hub, since hub itself
// depends on metrics to time its own operations.
type Sizer interface {
	ConnectorCacheSize() int
	DtrCacheSize() int
	EdrCacheSize() int
}

// Collector periodically samples cache gauges from a Sizer.
type Collector struct {
	sizer  Sizer
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(sizer Sizer) *Collector {
	return &Collector{
		sizer:  sizer,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	ConnectorCacheSize.Set(float64(c.sizer.ConnectorCacheSize()))
	DtrCacheSize.Set(float64(c.sizer.DtrCacheSize()))
	EdrCacheSize.Set(float64(c.sizer.EdrCacheSize()))
}
