package librus

type Stage int

const (
	StageStart Stage = iota
	StageReachable
	StageTokenFetched
	StageLoggedIn
	StageBearerAcquired
	StageProbed
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageStart:
		return "start"
	case StageReachable:
		return "reachable"
	case StageTokenFetched:
		return "token-fetched"
	case StageLoggedIn:
		return "logged-in"
	case StageBearerAcquired:
		return "bearer-acquired"
	case StageProbed:
		return "probed"
	case StageDone:
		return "done"
	}
	return "unknown"
}
