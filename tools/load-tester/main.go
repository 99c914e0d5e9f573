package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/time/rate"

	"github.com/V4T54L/csv-indexer/internal/adapter/objectstore"
)

var (
	actions = []string{"click", "view", "purchase", "logout"}
	pages   = []string{"/home", "/cart", "/checkout", "/search"}
	codes   = []int{200, 200, 200, 301, 404, 500}
)

func main() {
	targetURL := flag.String("url", "http://localhost:8080/notifications", "Webhook URL")
	token := flag.String("token", "", "Webhook bearer token")
	bucket := flag.String("bucket", "uploads", "Bucket to upload generated files to")
	region := flag.String("region", "us-east-1", "AWS region")
	endpoint := flag.String("s3-endpoint", "http://localhost:9000", "S3-compatible endpoint, empty for AWS")
	rows := flag.Int("rows", 500, "Rows per generated file")
	compress := flag.Bool("gzip", false, "Upload gzip-compressed files")
	concurrency := flag.Int("c", 4, "Number of concurrent workers")
	duration := flag.Duration("d", 30*time.Second, "Duration of the load test")
	fps := flag.Float64("fps", 5, "Files per second limit")
	flag.Parse()

	log.Printf("Starting load test on %s (bucket %s)", *targetURL, *bucket)
	log.Printf("Concurrency: %d, Duration: %s, Files/s: %.1f, Rows/file: %d", *concurrency, *duration, *fps, *rows)

	sess, err := objectstore.NewSession(*region, *endpoint, *endpoint != "")
	if err != nil {
		log.Fatalf("failed to create AWS session: %v", err)
	}
	s3Client := s3.New(sess)

	var wg sync.WaitGroup
	var filesOK, filesFailed, rowsIndexed, rowsFailed atomic.Int64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	limiter := rate.NewLimiter(rate.Limit(*fps), 1)
	client := &http.Client{Timeout: 60 * time.Second}

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for {
				if err := limiter.Wait(ctx); err != nil {
					return
				}

				key := fmt.Sprintf("load-test/%d/%s.csv", workerID, uuid.NewString())
				body := generateCSV(*rows)
				if *compress {
					key += ".gz"
					body = gzipBytes(body)
				}

				if _, err := s3Client.PutObjectWithContext(ctx, &s3.PutObjectInput{
					Bucket: aws.String(*bucket),
					Key:    aws.String(key),
					Body:   bytes.NewReader(body),
				}); err != nil {
					log.Printf("worker %d: upload failed: %v", workerID, err)
					filesFailed.Add(1)
					continue
				}

				summary, err := notify(ctx, client, *targetURL, *token, *bucket, key)
				if err != nil {
					filesFailed.Add(1)
					continue
				}
				filesOK.Add(1)
				rowsIndexed.Add(int64(summary.Succeeded))
				rowsFailed.Add(int64(summary.Failed))
			}
		}(i)
	}

	wg.Wait()

	log.Println("Load test finished.")
	log.Printf("Files notified: %d, failed: %d", filesOK.Load(), filesFailed.Load())
	log.Printf("Rows indexed: %d, failed: %d", rowsIndexed.Load(), rowsFailed.Load())
	log.Printf("Indexed rows/s: %.2f", float64(rowsIndexed.Load())/duration.Seconds())
}

type summary struct {
	Status    string `json:"status"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
}

func notify(ctx context.Context, client *http.Client, url, token, bucket, key string) (*summary, error) {
	var rec events.S3EventRecord
	rec.EventSource = "aws:s3"
	rec.EventName = "ObjectCreated:Put"
	rec.EventTime = time.Now().UTC()
	rec.S3.Bucket.Name = bucket
	rec.S3.Object.Key = key

	payload, err := json.Marshal(events.S3Event{Records: []events.S3EventRecord{rec}})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusMultiStatus {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var s summary
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

func generateCSV(rows int) []byte {
	var buf bytes.Buffer
	buf.WriteString("timestamp,user_id,action,page,status_code,amount_spent\n")
	now := time.Now().UTC()
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&buf, "%s,u%d,%s,%s,%d,%.2f\n",
			now.Add(time.Duration(i)*time.Millisecond).Format(time.RFC3339Nano),
			rand.Intn(10000),
			actions[rand.Intn(len(actions))],
			pages[rand.Intn(len(pages))],
			codes[rand.Intn(len(codes))],
			rand.Float64()*100,
		)
	}
	return buf.Bytes()
}

func gzipBytes(b []byte) []byte {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write(b)
	zw.Close()
	return buf.Bytes()
}
