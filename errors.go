// typed protocol errors sent back to clients
package main

// Error codes surfaced in error envelopes. Clients key UI behavior off
// these, so they are part of the wire contract.
const (
	codeInvalidTrackID     = "INVALID_TRACK_ID"
	codeInsufficientTokens = "QUEUE_INSUFFICIENT_TOKENS"
	codeSpotifyAPIError    = "SPOTIFY_API_ERROR"
	codeUnknownAction      = "UNKNOWN_ACTION"
	codeNoTrackPlaying     = "NO_TRACK_PLAYING"
	codeGeneralError       = "GENERAL_ERROR"
)

func successReply(fields map[string]any) map[string]any {
	if fields == nil {
		fields = map[string]any{}
	}
	fields["success"] = true
	return fields
}

func errorReply(code, message string, details map[string]any) map[string]any {
	body := map[string]any{
		"code":    code,
		"message": message,
	}
	if details != nil {
		body["details"] = details
	}
	return map[string]any{
		"success": false,
		"error":   body,
	}
}
