package quiz

import "errors"

var (
	// ErrAlreadyActive is returned by Start when questions are already being scheduled.
	ErrAlreadyActive = errors.New("quiz already active")
	// ErrAlreadyInactive is returned by Stop when the quiz is not running.
	ErrAlreadyInactive = errors.New("quiz already inactive")
	// ErrNotActive is returned by operations that need a running quiz.
	ErrNotActive = errors.New("quiz not active")
	// ErrNoChannel means the community has not bound a quiz channel yet.
	ErrNoChannel = errors.New("quiz channel not configured")
	// ErrWrongChannel means the event came from a channel other than the bound one.
	ErrWrongChannel = errors.New("not the quiz channel")
	// ErrNoActiveQuestion means no question is currently posted.
	ErrNoActiveQuestion = errors.New("no active question")
	// ErrDuplicateAnswer means the user already answered the current question.
	ErrDuplicateAnswer = errors.New("already answered this question")
	// ErrStaleRound means a button press refers to an earlier question.
	ErrStaleRound = errors.New("question already closed")
	// ErrNotMultipleChoice means a choice was submitted for a free-text question.
	ErrNotMultipleChoice = errors.New("question has no options")
	// ErrInvalidChoice means the option index is out of range.
	ErrInvalidChoice = errors.New("invalid option")
	// ErrPostFailed means the question could not be posted and the quiz was
	// stopped.
	ErrPostFailed = errors.New("could not post question")
	// ErrShuttingDown is returned for any mutation after Shutdown.
	ErrShuttingDown = errors.New("quiz manager shutting down")
)
