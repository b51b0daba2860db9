// Package notify sends the finished report set by email and watches the
// sender's inbox for a yes/no confirmation from one of the recipients.
package notify
