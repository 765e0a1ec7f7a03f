package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a quiz session does not exist or expired.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrQuizFinished is returned when answering past the last question.
	ErrQuizFinished = errors.New("all questions already answered")
	// ErrQuizAlreadyFinished is returned when finishing a session twice.
	ErrQuizAlreadyFinished = errors.New("quiz already finished")
	// ErrNoQuestions indicates no source could provide questions.
	ErrNoQuestions = errors.New("no questions available")
	// ErrInvalidQuery indicates unsupported question filters.
	ErrInvalidQuery = errors.New("invalid question query")
	// ErrUpstream wraps failures of third-party APIs.
	ErrUpstream = errors.New("upstream request failed")

	ErrInvalidAddress = errors.New("invalid wallet address")
	ErrSpinCooldown   = errors.New("spin already used, try again later")
	ErrClaimNotFound  = errors.New("claim not found")
	ErrAlreadyPaid    = errors.New("claim already paid")
	ErrNotAWin        = errors.New("spin did not win a prize")
	ErrPayoutNotFound = errors.New("payout transaction not confirmed")
	ErrTxAlreadyUsed  = errors.New("payout transaction already recorded")

	// ErrAddressNotOwned is returned when the caller's FID has not verified the wallet.
	ErrAddressNotOwned = errors.New("wallet not verified for this account")

	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrChainUnavailable = errors.New("chain rpc not configured")
	ErrAppKeyUnchecked  = errors.New("app key verification not configured")
)
