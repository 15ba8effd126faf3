package nats

import "fmt"

// Stream names for JetStream.
const (
	StreamRebalance = "REBALANCE"
)

// StatisticsSubject creates a subject for a rebalance Statistics record.
func StatisticsSubject(pair, action string) string {
	return fmt.Sprintf("rebalance.statistics.%s.%s", pair, action)
}

// GetStreamSubjects returns the subjects a stream should capture.
func GetStreamSubjects(streamName string) []string {
	switch streamName {
	case StreamRebalance:
		return []string{"rebalance.>"}
	default:
		return []string{}
	}
}
