package recognition

// User-facing messages for the observable error slot.
const (
	permissionDeniedMessage = "microphone permission denied"
	noSpeechMessage         = "no speech detected, try again"
	noMicrophoneMessage     = "no microphone available"
	networkMessage          = "network error during voice input"
	genericMessage          = "voice input failed, try again"

	unsupportedMessage = "voice input is not available in this environment"
	startFailedMessage = "could not start voice input"
)

// Translate maps an engine error code to its user-facing message. Unknown
// codes fall through to the generic message; the mapping is total.
func Translate(code ErrorCode) string {
	switch code {
	case CodeNotAllowed, CodeServiceNotAllowed:
		return permissionDeniedMessage
	case CodeNoSpeech:
		return noSpeechMessage
	case CodeAudioCapture:
		return noMicrophoneMessage
	case CodeNetwork:
		return networkMessage
	default:
		return genericMessage
	}
}
