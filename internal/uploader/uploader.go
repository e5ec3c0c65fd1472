package uploader

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// Options selects the archive target and credential source. RoleARN plus
// TokenFile uses web identity federation; AccessKeyID/SecretAccessKey use
// static credentials; with neither set the default AWS chain applies.
type Options struct {
	Bucket            string
	Region            string
	RoleARN           string
	TokenFile         string
	AccessKeyID       string
	SecretAccessKey   string
	DeleteAfterUpload bool
	MaxRetries        int
}

// Uploader archives completed chat log files to S3
type Uploader struct {
	s3Client    *s3.Client
	bucket      string
	deleteAfter bool
	maxRetries  int
}

// New creates an uploader from the given options
func New(ctx context.Context, opts Options) (*Uploader, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.RoleARN == "" && opts.AccessKeyID != "" {
		provider := credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(provider))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	if opts.RoleARN != "" {
		provider := stscreds.NewWebIdentityRoleProvider(
			sts.NewFromConfig(cfg),
			opts.RoleARN,
			stscreds.IdentityTokenFile(opts.TokenFile),
		)
		cfg.Credentials = aws.NewCredentialsCache(provider)
	}

	return &Uploader{
		s3Client:    s3.NewFromConfig(cfg),
		bucket:      opts.Bucket,
		deleteAfter: opts.DeleteAfterUpload,
		maxRetries:  opts.MaxRetries,
	}, nil
}

// ScanExisting scans outputDir for leftover .jsonl files from a previous
// run and queues them for upload
func (u *Uploader) ScanExisting(outputDir string, fileChan chan<- string) error {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return fmt.Errorf("read directory: %w", err)
	}

	queued := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		select {
		case fileChan <- filepath.Join(outputDir, entry.Name()):
			queued++
		default:
			log.Printf("Warning: upload queue full, skipping existing file %s", entry.Name())
		}
	}
	if queued > 0 {
		log.Printf("Queued %d existing files for upload", queued)
	}
	return nil
}

// Start consumes completed file paths and uploads them until ctx is
// cancelled
func (u *Uploader) Start(ctx context.Context, fileChan <-chan string) error {
	for {
		select {
		case path := <-fileChan:
			u.uploadWithRetry(ctx, path)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// uploadWithRetry uploads one file with exponential backoff between
// attempts
func (u *Uploader) uploadWithRetry(ctx context.Context, localPath string) {
	filename := filepath.Base(localPath)
	key, err := archiveKey(filename)
	if err != nil {
		log.Printf("Skipping upload of %s: %v", filename, err)
		return
	}

	for attempt := 0; attempt <= u.maxRetries; attempt++ {
		err := u.upload(ctx, localPath, key)
		if err == nil {
			log.Printf("Uploaded %s to s3://%s/%s", filename, u.bucket, key)
			if u.deleteAfter {
				if err := os.Remove(localPath); err != nil {
					log.Printf("Error deleting local file %s: %v", localPath, err)
				}
			}
			return
		}

		if attempt < u.maxRetries {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			log.Printf("Upload attempt %d/%d failed for %s: %v. Retrying in %v",
				attempt+1, u.maxRetries, filename, err, backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
		}
	}

	log.Printf("Failed to upload %s after %d attempts", filename, u.maxRetries)
}

func (u *Uploader) upload(ctx context.Context, localPath, key string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	_, err = u.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   file,
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// archiveKey derives the S3 key from a recorder filename.
// Input: chzzk_a1b2c3_20260827_1030.jsonl
// Output: 2026/08/27/chzzk/a1b2c3/chzzk_a1b2c3_20260827_1030.jsonl
func archiveKey(filename string) (string, error) {
	name := strings.TrimSuffix(filename, ".jsonl")

	// platform_channel_YYYYMMDD_HHMM; channel names may themselves
	// contain underscores, so the date and time come off the end
	parts := strings.Split(name, "_")
	if len(parts) < 4 {
		return "", fmt.Errorf("invalid filename format: %s", filename)
	}

	platform := parts[0]
	dateStr := parts[len(parts)-2]
	timeStr := parts[len(parts)-1]
	channel := strings.Join(parts[1:len(parts)-2], "_")

	t, err := time.Parse("20060102_1504", dateStr+"_"+timeStr)
	if err != nil {
		return "", fmt.Errorf("parse timestamp: %w", err)
	}

	return fmt.Sprintf("%04d/%02d/%02d/%s/%s/%s",
		t.Year(), t.Month(), t.Day(), platform, channel, filename), nil
}
