// ABOUTME: Chat backend client package
// ABOUTME: Turns a transcript and face emotion into the assistant's reply
// Package chat calls the conversational backend that produces the text
// the kiosk speaks.
//
// Example:
//
//	reply, err := chat.NewClient(chat.Config{}).Reply(ctx, transcript, "happy")
package chat
