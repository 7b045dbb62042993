package services

import "context"

// IEmailQueue hands outgoing mail to the background worker. Implemented by
// the tasks package on top of asynq; services only know this interface so the
// dependency points one way.
type IEmailQueue interface {
	EnqueueEmail(ctx context.Context, to, subject, body string) error
}

// IImageQueue schedules receipt thumbnail generation for an uploaded
// attachment.
type IImageQueue interface {
	EnqueueThumbnail(ctx context.Context, expenseID, attachmentID, fileKey string) error
}
