// Package email delivers transactional email.
//
// Sender is the single abstraction: PostmarkSender talks to Postmark through
// github.com/mrz1836/postmark, DevSender writes messages to a local directory
// so development environments never reach a real inbox. Both return a message
// id which callers record in their delivery logs.
//
// HTML bodies are usually produced by templ components rendered with
// templates.Render.
package email
