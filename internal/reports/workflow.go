package reports

// transitions is the status workflow. A report only ever moves forward.
var transitions = map[Status][]Status{
	StatusUploaded:   {StatusProcessing},
	StatusProcessing: {StatusCompleted},
	StatusCompleted:  {},
}

func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Next returns the single legal successor of s, if any.
func Next(s Status) (Status, bool) {
	next := transitions[s]
	if len(next) == 0 {
		return "", false
	}
	return next[0], true
}

// Reachable reports whether some status can move to s.
func Reachable(s Status) bool {
	for _, to := range transitions {
		for _, t := range to {
			if t == s {
				return true
			}
		}
	}
	return false
}

// Step is the 1-based position of s in the workflow, 0 if unknown.
func Step(s Status) int {
	for i, v := range Statuses {
		if v == s {
			return i + 1
		}
	}
	return 0
}
