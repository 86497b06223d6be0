// Package voice implements the conversational audio pipeline that turns a
// persona agent into a room participant. An AgentSession connects the audio
// stages end to end:
//
//	room audio -> VAD -> STT (one stream per utterance) -> turn detection
//	           -> model reply (with tool calls) -> TTS -> room audio
//
// The session persists every user utterance, assistant reply and tool
// exchange as core events, emits observable session events (transcripts,
// conversation items, state changes, metrics) and supports barge-in: user
// speech while the agent is talking interrupts the reply in flight.
package voice
