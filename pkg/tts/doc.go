// ABOUTME: Text-to-speech client package
// ABOUTME: Streams synthesized MP3 from the ElevenLabs API
// Package tts requests synthesized speech and returns it as a live byte
// stream, ready to be handed to a playback session.
//
// Example:
//
//	client := tts.NewClient(cfg)
//	body, err := client.Stream(ctx, "Hello there")
//	defer body.Close()
package tts
