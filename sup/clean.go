package sup

// consumeEvents hands every reaper event to the job control plan until the
// reaper closes the channel.
func consumeEvents(events <-chan Event, jc *JobControl) {
	for ev := range events {
		if jc != nil {
			jc.Observe(ev)
		}
	}
}
