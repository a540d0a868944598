package llamabot

import "errors"

// ErrIndexNotConfigured reports an answer or save attempt on a bot
// that was never given documents or a saved index.
var ErrIndexNotConfigured = errors.New("llamabot: no index configured; provide documents or insert one first")
