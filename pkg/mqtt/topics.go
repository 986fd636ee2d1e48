package mqtt

// RoundsTopic carries one notification per committed round.
func RoundsTopic(base string) string {
	return base + "/fl/rounds/next"
}

// RunsTopic carries the final notification of a run.
func RunsTopic(base string) string {
	return base + "/fl/runs/done"
}

// StatusTopic holds the retained online/offline state of a client.
func StatusTopic(base, clientID string) string {
	return base + "/fl/status/" + clientID
}
