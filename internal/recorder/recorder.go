package recorder

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aperso/monochat/internal/message"
)

// logFile manages one open JSONL file for a platform/channel pair
type logFile struct {
	file         *os.File
	writer       *bufio.Writer
	createdAt    time.Time
	bytesWritten int64
	buffer       []message.Message
	platform     string
	channel      string
	filename     string
}

// Recorder buffers unified messages and writes them to rotating JSONL
// files, one file per platform/channel pair
type Recorder struct {
	outputDir       string
	bufferSize      int
	rotateMinutes   int
	rotateMegabytes int64

	open map[string]*logFile // key: "platform_channel"
	mu   sync.Mutex
}

// New creates a new recorder
func New(outputDir string, bufferSize, rotateMinutes, rotateMegabytes int) *Recorder {
	return &Recorder{
		outputDir:       outputDir,
		bufferSize:      bufferSize,
		rotateMinutes:   rotateMinutes,
		rotateMegabytes: int64(rotateMegabytes) * 1024 * 1024,
		open:            make(map[string]*logFile),
	}
}

// Start consumes messages until ctx is cancelled, queueing rotated files
// on fileChan for upload
func (r *Recorder) Start(ctx context.Context, messageChan <-chan message.Message, fileChan chan<- string) error {
	if err := os.MkdirAll(r.outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case msg := <-messageChan:
			if err := r.record(msg); err != nil {
				log.Printf("Error recording message: %v", err)
			}

		case <-ticker.C:
			r.rotateExpired(fileChan)

		case <-ctx.Done():
			log.Println("Recorder shutting down, flushing buffers...")
			r.closeAll(fileChan)
			return ctx.Err()
		}
	}
}

func (r *Recorder) record(msg message.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s_%s", msg.Platform, msg.Channel)
	lf := r.open[key]
	if lf == nil {
		var err error
		lf, err = r.create(msg.Platform, msg.Channel)
		if err != nil {
			return fmt.Errorf("create log file: %w", err)
		}
		r.open[key] = lf
	}

	lf.buffer = append(lf.buffer, msg)
	if len(lf.buffer) >= r.bufferSize {
		if err := r.flush(lf); err != nil {
			return fmt.Errorf("flush buffer: %w", err)
		}
	}
	return nil
}

func (r *Recorder) create(platform, channel string) (*logFile, error) {
	timestamp := time.Now().UTC().Format("20060102_1504")
	filename := fmt.Sprintf("%s_%s_%s.jsonl", platform, channel, timestamp)

	file, err := os.Create(filepath.Join(r.outputDir, filename))
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}
	log.Printf("Created new log file: %s", filename)

	return &logFile{
		file:      file,
		writer:    bufio.NewWriter(file),
		createdAt: time.Now(),
		buffer:    make([]message.Message, 0, r.bufferSize),
		platform:  platform,
		channel:   channel,
		filename:  filename,
	}, nil
}

// flush writes buffered messages through the bufio writer to disk
func (r *Recorder) flush(lf *logFile) error {
	for _, msg := range lf.buffer {
		data, err := json.Marshal(msg)
		if err != nil {
			log.Printf("Error marshaling message: %v", err)
			continue
		}
		n, err := lf.writer.Write(append(data, '\n'))
		if err != nil {
			return fmt.Errorf("write message: %w", err)
		}
		lf.bytesWritten += int64(n)
	}
	lf.buffer = lf.buffer[:0]
	return lf.writer.Flush()
}

// rotateExpired rotates any open file past its time or size limit
func (r *Recorder) rotateExpired(fileChan chan<- string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, lf := range r.open {
		overAge := time.Since(lf.createdAt).Minutes() >= float64(r.rotateMinutes)
		overSize := lf.bytesWritten >= r.rotateMegabytes
		if !overAge && !overSize {
			continue
		}
		log.Printf("Rotating file %s", lf.filename)
		r.rotate(key, lf, fileChan)
	}
}

// rotate closes the current file, queues it for upload, and opens a fresh
// one for the same platform/channel
func (r *Recorder) rotate(key string, lf *logFile, fileChan chan<- string) {
	r.close(lf, fileChan)

	next, err := r.create(lf.platform, lf.channel)
	if err != nil {
		log.Printf("Error creating new log file: %v", err)
		delete(r.open, key)
		return
	}
	r.open[key] = next
}

// close flushes and closes one file and queues it for upload
func (r *Recorder) close(lf *logFile, fileChan chan<- string) {
	if err := r.flush(lf); err != nil {
		log.Printf("Error flushing log file: %v", err)
	}
	if err := lf.file.Close(); err != nil {
		log.Printf("Error closing log file: %v", err)
	}

	path := filepath.Join(r.outputDir, lf.filename)
	select {
	case fileChan <- path:
		log.Printf("Queued file for upload: %s", lf.filename)
	default:
		log.Printf("Warning: upload queue full, file will be picked up later: %s", lf.filename)
	}
}

// closeAll closes every open file on shutdown
func (r *Recorder) closeAll(fileChan chan<- string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, lf := range r.open {
		r.close(lf, fileChan)
		delete(r.open, key)
	}
}
