// Package artifacts keeps run evidence in S3: failure screenshots from the
// browser session and a JSON record of every finished run.
package artifacts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/wolfman30/expert-call-booker/internal/booking"
	"github.com/wolfman30/expert-call-booker/pkg/logging"
)

// S3API is the subset of the S3 client used by Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Store writes artifacts under a single bucket. A Store without a bucket is a no-op.
type Store struct {
	bucket string
	client S3API
	logger *logging.Logger
	now    func() time.Time
}

// NewStore creates a Store. If bucket is empty, all operations are no-ops.
func NewStore(client S3API, bucket string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{bucket: bucket, client: client, logger: logger, now: time.Now}
}

// Enabled reports whether a bucket and client are configured.
func (s *Store) Enabled() bool {
	return s != nil && s.bucket != "" && s.client != nil
}

// PutScreenshot uploads a PNG and returns its s3:// location.
func (s *Store) PutScreenshot(ctx context.Context, name string, png []byte) (string, error) {
	if !s.Enabled() {
		return "", nil
	}
	now := s.now().UTC()
	key := fmt.Sprintf("screenshots/%d/%02d/%02d/%s", now.Year(), now.Month(), now.Day(), sanitize(name))
	if err := s.put(ctx, key, png, "image/png"); err != nil {
		return "", err
	}
	return "s3://" + s.bucket + "/" + key, nil
}

// RunRecord is the archived form of a finished run.
type RunRecord struct {
	RunID      string           `json:"runId"`
	Caller     string           `json:"caller"`
	Request    booking.RunInput `json:"request"`
	Bookings   []booking.Record `json:"bookings"`
	Skipped    []booking.Skip   `json:"skipped"`
	ArchivedAt time.Time        `json:"archivedAt"`
}

// ManifestEntry is one line of the monthly runs manifest.
type ManifestEntry struct {
	RunID       string `json:"runId"`
	Key         string `json:"key"`
	Company     string `json:"company"`
	Role        string `json:"role"`
	Requested   int    `json:"requested"`
	BookedCount int    `json:"bookedCount"`
	ArchivedAt  string `json:"archivedAt"`
}

// NotifyOutcome archives the run so it can be plugged in as a booking.Notifier.
func (s *Store) NotifyOutcome(ctx context.Context, caller booking.CallerDetails, req booking.Request, outcome *booking.Outcome) error {
	if !s.Enabled() || outcome == nil {
		return nil
	}
	now := s.now().UTC()
	record := RunRecord{
		RunID:      outcome.RunID,
		Caller:     caller.Email,
		Request:    req.Input(),
		Bookings:   outcome.Booked,
		Skipped:    outcome.Skipped,
		ArchivedAt: now,
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("artifacts: marshal run: %w", err)
	}
	key := fmt.Sprintf("runs/v1/by-date/%d/%02d/%02d/%s.json", now.Year(), now.Month(), now.Day(), outcome.RunID)
	if err := s.put(ctx, key, data, "application/json"); err != nil {
		return err
	}
	s.logger.Info("artifacts: run archived", "run_id", outcome.RunID, "s3_key", key, "booked", outcome.BookedCount())

	entry := ManifestEntry{
		RunID:       outcome.RunID,
		Key:         key,
		Company:     req.TargetCompany,
		Role:        req.TargetRole,
		Requested:   req.NumCalls,
		BookedCount: outcome.BookedCount(),
		ArchivedAt:  now.Format(time.RFC3339),
	}
	if err := s.appendManifest(ctx, now, entry); err != nil {
		// The run itself is already stored.
		s.logger.Warn("artifacts: failed to append manifest", "error", err, "run_id", outcome.RunID)
	}
	return nil
}

// appendManifest does a read-modify-write since S3 has no append.
func (s *Store) appendManifest(ctx context.Context, now time.Time, entry ManifestEntry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("artifacts: marshal manifest entry: %w", err)
	}
	key := fmt.Sprintf("runs/v1/manifests/%d-%02d.jsonl", now.Year(), now.Month())

	var existing []byte
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	switch {
	case err == nil:
		existing, err = io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("artifacts: read manifest: %w", err)
		}
	case isNotFound(err):
		s.logger.Debug("artifacts: manifest not found, creating new", "key", key)
	default:
		return fmt.Errorf("artifacts: get manifest: %w", err)
	}

	var buf bytes.Buffer
	if len(existing) > 0 {
		buf.Write(existing)
		if existing[len(existing)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	buf.Write(line)
	buf.WriteByte('\n')
	return s.put(ctx, key, buf.Bytes(), "application/x-ndjson")
}

func (s *Store) put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("artifacts: s3 put %s: %w", key, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "NoSuchKey") || strings.Contains(msg, "StatusCode: 404")
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
