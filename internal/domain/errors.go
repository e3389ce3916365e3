package domain

import "errors"

var (
	// ErrContentLoad is returned when the question set for a session could not
	// be fetched. The session stays not started and the call can be retried.
	ErrContentLoad = errors.New("question set could not be loaded")
	// ErrEmptyQuestionSet indicates a source returned no questions.
	ErrEmptyQuestionSet = errors.New("question set is empty")
	// ErrValidationUnavailable marks an answer that could not be checked remotely.
	ErrValidationUnavailable = errors.New("answer validation unavailable")
	// ErrInvalidTransition is logged when a trigger does not apply to the current phase.
	ErrInvalidTransition = errors.New("invalid session transition")
	// ErrAlreadyArmed is a programming error: a countdown was armed while another was active.
	ErrAlreadyArmed = errors.New("countdown already armed")
	// ErrUnknownDifficulty rejects difficulties other than easy, medium and hard.
	ErrUnknownDifficulty = errors.New("unknown difficulty")
	// ErrPlaylistNotFound indicates the playlist content could not be found.
	ErrPlaylistNotFound = errors.New("playlist not found")
	// ErrNotEnoughTracks is returned for playlists too small to build a quiz.
	ErrNotEnoughTracks = errors.New("not enough tracks in playlist")
	// ErrQuestionNotFound indicates a validated question ID is unknown or expired.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrSessionNotFound is returned when a quiz session does not exist.
	ErrSessionNotFound = errors.New("quiz session not found")
)
