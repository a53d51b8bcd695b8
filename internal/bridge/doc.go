// Package bridge probes the metrics endpoints aggregated by the bridge
// listener. A probe fetches one endpoint's Prometheus text exposition,
// parses it and reports family/sample counts, so the daemon can verify
// endpoints at startup and after a reload without running a full bridge
// cycle.
package bridge
