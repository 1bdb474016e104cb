package metrics

import "strings"

const metricPrefix = "repcoach_"

// MetricName prefixes name with the service namespace unless it already carries it.
func MetricName(name string) string {
	if strings.HasPrefix(name, metricPrefix) {
		return name
	}
	return metricPrefix + name
}

// MetricNameWithSubsystem joins subsystem and name under the service namespace.
func MetricNameWithSubsystem(subsystem, name string) string {
	subsystem = strings.Trim(subsystem, "_")
	name = strings.Trim(name, "_")
	switch {
	case subsystem == "":
		return MetricName(name)
	case name == "":
		return MetricName(subsystem)
	default:
		return MetricName(subsystem + "_" + name)
	}
}
