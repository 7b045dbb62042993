package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hibiken/asynq"
	"github.com/nfnt/resize"
	"github.com/redis/go-redis/v9"

	"github.com/nckmackenzie/atarah-api/internal/config"
	"github.com/nckmackenzie/atarah-api/internal/email"
	"github.com/nckmackenzie/atarah-api/internal/services"
	"github.com/nckmackenzie/atarah-api/internal/utils"
)

// Task type names routed through asynq.
const (
	TypeEmailDelivery       = "email:deliver"
	TypeReceiptThumbnail    = "expense:receipt:thumbnail"
	TypeInvoiceCheckOverdue = "invoice:check_overdue"
)

// NewClient creates an asynq client over the shared Redis connection.
func NewClient(rdb *redis.Client) *asynq.Client {
	opts := rdb.Options()
	return asynq.NewClient(asynq.RedisClientOpt{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
}

// Queue adapts the asynq client to the enqueue interfaces the services
// depend on.
type Queue struct {
	client *asynq.Client
}

// NewQueue wraps an asynq client.
func NewQueue(client *asynq.Client) *Queue {
	return &Queue{client: client}
}

// EmailTaskPayload is the wire form of an email delivery task.
type EmailTaskPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// EnqueueEmail schedules delivery of a plain-text email.
func (q *Queue) EnqueueEmail(ctx context.Context, to, subject, body string) error {
	payload, err := json.Marshal(EmailTaskPayload{To: to, Subject: subject, Body: body})
	if err != nil {
		return fmt.Errorf("failed to marshal email payload: %w", err)
	}
	_, err = q.client.EnqueueContext(ctx, asynq.NewTask(TypeEmailDelivery, payload), asynq.Queue("critical"))
	if err != nil {
		return fmt.Errorf("failed to enqueue email task: %w", err)
	}
	return nil
}

// ThumbnailTaskPayload is the wire form of a receipt thumbnail task.
type ThumbnailTaskPayload struct {
	ExpenseID    string `json:"expense_id"`
	AttachmentID string `json:"attachment_id"`
	FileKey      string `json:"file_key"`
}

// EnqueueThumbnail schedules thumbnail generation for an uploaded receipt.
// The task is delayed briefly so the pre-signed upload can finish first.
func (q *Queue) EnqueueThumbnail(ctx context.Context, expenseID, attachmentID, fileKey string) error {
	payload, err := json.Marshal(ThumbnailTaskPayload{
		ExpenseID:    expenseID,
		AttachmentID: attachmentID,
		FileKey:      fileKey,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal thumbnail payload: %w", err)
	}
	_, err = q.client.EnqueueContext(ctx, asynq.NewTask(TypeReceiptThumbnail, payload),
		asynq.Queue("images"), asynq.ProcessIn(30*time.Second), asynq.MaxRetry(5))
	if err != nil {
		return fmt.Errorf("failed to enqueue thumbnail task: %w", err)
	}
	return nil
}

// TaskProcessor handles the processing of background tasks. It holds the
// dependencies the task handlers need.
type TaskProcessor struct {
	cfg            *config.Config
	emailSender    email.Sender
	invoiceService services.IInvoiceService
	expenseService services.IExpenseService
	clientService  services.IClientService
	s3Client       *s3.Client
}

// NewTaskProcessor creates a TaskProcessor.
func NewTaskProcessor(
	cfg *config.Config,
	emailSender email.Sender,
	invoiceService services.IInvoiceService,
	expenseService services.IExpenseService,
	clientService services.IClientService,
	s3Client *s3.Client,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:            cfg,
		emailSender:    emailSender,
		invoiceService: invoiceService,
		expenseService: expenseService,
		clientService:  clientService,
		s3Client:       s3Client,
	}
}

// SetupServer configures an asynq server for the background worker. The
// caller runs it with the returned mux and owns its shutdown.
func SetupServer(rdb *redis.Client, processor *TaskProcessor) (*asynq.Server, *asynq.ServeMux) {
	opts := rdb.Options()
	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: opts.Addr, Password: opts.Password, DB: opts.DB},
		asynq.Config{
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"images":   3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("[Asynq Error] Task Type: %s, Payload: %s, Error: %v", task.Type(), string(task.Payload()), err)
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeEmailDelivery, processor.HandleEmailDeliveryTask)
	mux.HandleFunc(TypeReceiptThumbnail, processor.HandleReceiptThumbnailTask)
	mux.HandleFunc(TypeInvoiceCheckOverdue, processor.HandleInvoiceCheckOverdueTask)
	log.Println("Registered background task handlers.")

	return srv, mux
}

// HandleEmailDeliveryTask sends a queued email through the configured sender.
func (p *TaskProcessor) HandleEmailDeliveryTask(ctx context.Context, t *asynq.Task) error {
	var payload EmailTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal email task payload: %v: %w", err, asynq.SkipRetry)
	}

	rawMessage := email.BuildMessage(p.cfg.SmtpFromAddress, []string{payload.To}, payload.Subject, payload.Body)
	if err := p.emailSender.Send(ctx, []string{payload.To}, payload.Subject, rawMessage); err != nil {
		log.Printf("Email delivery to %s failed, will retry: %v", payload.To, err)
		return err
	}
	return nil
}

// HandleReceiptThumbnailTask downloads an uploaded receipt image, renders a
// bounded thumbnail and stores it next to the original.
func (p *TaskProcessor) HandleReceiptThumbnailTask(ctx context.Context, t *asynq.Task) error {
	var payload ThumbnailTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal thumbnail task payload: %v: %w", err, asynq.SkipRetry)
	}

	expenseID, err := utils.ParseSixID(payload.ExpenseID)
	if err != nil {
		return fmt.Errorf("invalid expense ID in payload: %w", asynq.SkipRetry)
	}
	attachmentID, err := utils.ParseSixID(payload.AttachmentID)
	if err != nil {
		return fmt.Errorf("invalid attachment ID in payload: %w", asynq.SkipRetry)
	}

	getOutput, err := p.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.cfg.AwsS3Bucket),
		Key:    aws.String(payload.FileKey),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			// Retry; the delayed task can still beat a slow upload.
			return fmt.Errorf("receipt %s not uploaded yet", payload.FileKey)
		}
		return fmt.Errorf("failed to download receipt %s: %w", payload.FileKey, err)
	}
	defer getOutput.Body.Close()

	imgData, err := io.ReadAll(getOutput.Body)
	if err != nil {
		return fmt.Errorf("failed to read receipt data for %s: %w", payload.FileKey, err)
	}

	maxSizeBytes := int64(p.cfg.AttachmentMaxSizeMB) * 1024 * 1024
	if int64(len(imgData)) > maxSizeBytes {
		log.Printf("Receipt %s exceeds max size (%d > %d bytes), skipping thumbnail", payload.FileKey, len(imgData), maxSizeBytes)
		return fmt.Errorf("receipt exceeds max size: %w", asynq.SkipRetry)
	}

	img, format, err := image.Decode(bytes.NewReader(imgData))
	if err != nil {
		log.Printf("Receipt %s is not a decodable image (%v), skipping thumbnail", payload.FileKey, err)
		return fmt.Errorf("unsupported image format: %w", asynq.SkipRetry)
	}

	maxDim := uint(p.cfg.ThumbMaxDimension)
	thumb := resize.Thumbnail(maxDim, maxDim, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 80}); err != nil {
		return fmt.Errorf("failed to encode thumbnail for %s: %w", payload.FileKey, err)
	}

	thumbKey := payload.FileKey + "_thumb.jpg"
	_, err = p.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.cfg.AwsS3Bucket),
		Key:         aws.String(thumbKey),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("image/jpeg"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload thumbnail %s: %w", thumbKey, err)
	}

	if err := p.expenseService.SetAttachmentThumbKey(ctx, expenseID, attachmentID, thumbKey); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			// Attachment removed while the thumbnail was in flight.
			return fmt.Errorf("attachment gone: %w", asynq.SkipRetry)
		}
		return err
	}
	log.Printf("Thumbnail generated for receipt %s (format %s, %dx%d)", payload.FileKey, format,
		thumb.Bounds().Dx(), thumb.Bounds().Dy())
	return nil
}

// HandleInvoiceCheckOverdueTask scans for invoices past due, emails the
// client a reminder and marks the invoice so it only fires once.
func (p *TaskProcessor) HandleInvoiceCheckOverdueTask(ctx context.Context, t *asynq.Task) error {
	log.Println("Starting overdue invoice check...")

	overdue, err := p.invoiceService.FindOverdue(ctx, time.Now().UTC())
	if err != nil {
		return err
	}

	notified := 0
	for i := range overdue {
		invoice := &overdue[i]
		client, err := p.clientService.FindByID(ctx, invoice.ClientID)
		if err != nil {
			log.Printf("Cannot load client %s for overdue invoice %s: %v", invoice.ClientID.String(), invoice.InvoiceNo, err)
			continue
		}
		if client.Email == "" {
			log.Printf("Client %s has no email, skipping overdue reminder for %s", client.Name, invoice.InvoiceNo)
			continue
		}

		subject := fmt.Sprintf("Invoice %s is overdue", invoice.InvoiceNo)
		body := fmt.Sprintf("Dear %s,\n\nInvoice %s dated %s for KES %s was due on %s and remains unpaid (balance KES %s).\n\nKindly arrange settlement.\n\nRegards,\n%s\n",
			client.Name, invoice.InvoiceNo, invoice.InvoiceDate.Format("2 Jan 2006"),
			invoice.TotalAmount, invoice.DueDate.Format("2 Jan 2006"), invoice.Balance().String(), p.cfg.AppName)
		rawMessage := email.BuildMessage(p.cfg.SmtpFromAddress, []string{client.Email}, subject, body)
		if err := p.emailSender.Send(ctx, []string{client.Email}, subject, rawMessage); err != nil {
			log.Printf("Failed to send overdue reminder for %s: %v", invoice.InvoiceNo, err)
			continue
		}
		if err := p.invoiceService.MarkOverdueNotified(ctx, invoice.ID); err != nil {
			log.Printf("Failed to flag invoice %s as notified: %v", invoice.InvoiceNo, err)
			continue
		}
		notified++
	}
	log.Printf("Overdue invoice check finished. Sent %d reminders.", notified)
	return nil
}

// ScheduleOverdueChecks enqueues the recurring overdue scan on a fixed
// interval. Runs until ctx is cancelled.
func ScheduleOverdueChecks(ctx context.Context, client *asynq.Client, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	enqueue := func() {
		if _, err := client.EnqueueContext(ctx, asynq.NewTask(TypeInvoiceCheckOverdue, nil),
			asynq.Queue("low"), asynq.Unique(interval)); err != nil {
			log.Printf("Failed to enqueue overdue check: %v", err)
		}
	}

	enqueue()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			enqueue()
		}
	}
}
