// Package s3test serves objects over a minimal S3-compatible HTTP API so the
// minio client can be exercised without network access.
package s3test

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var lastModified = time.Date(2021, 7, 2, 10, 10, 55, 0, time.UTC)

// Server is an anonymous, read-only bucket store.
type Server struct {
	*httptest.Server

	mu      sync.Mutex
	objects map[string][]byte
	gets    map[string]int
}

func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		objects: make(map[string][]byte),
		gets:    make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// Put stores content under bucket/key.
func (s *Server) Put(bucket, key string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[bucket+"/"+key] = content
}

// Gets returns how many GET requests were served for bucket/key.
func (s *Server) Gets(bucket, key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets[bucket+"/"+key]
}

// Endpoint is the host:port to hand to minio.New.
func (s *Server) Endpoint() string {
	return strings.TrimPrefix(s.URL, "http://")
}

// Client returns an anonymous minio client for the server.
func (s *Server) Client(t testing.TB) *minio.Client {
	t.Helper()
	c, err := minio.New(s.Endpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4("", "", ""),
		Secure: false,
		Region: "us-east-1",
	})
	if err != nil {
		t.Fatalf("minio client: %v", err)
	}
	return c
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")

	s.mu.Lock()
	content, ok := s.objects[path]
	if ok && r.Method == http.MethodGet {
		s.gets[path]++
	}
	s.mu.Unlock()

	if !ok {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusNotFound)
		if r.Method != http.MethodHead {
			fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message><Key>%s</Key></Error>`, path)
		}
		return
	}

	sum := md5.Sum(content)
	w.Header().Set("ETag", `"`+hex.EncodeToString(sum[:])+`"`)
	w.Header().Set("Last-Modified", lastModified.Format(http.TimeFormat))
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Accept-Ranges", "bytes")

	switch r.Method {
	case http.MethodHead:
		w.Header().Set("Content-Length", strconv.Itoa(len(content)))
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		http.ServeContent(w, r, path, lastModified, bytes.NewReader(content))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
